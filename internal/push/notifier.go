package push

import (
	"context"
	"log/slog"

	"github.com/dukerupert/academy/internal/store"
)

// Notifier sends local notifications to all of one user's devices and
// forgets devices whose subscription has expired.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: service, subs: subs, logger: logger}
}

// NotifyUser returns the number of devices reached. It is a no-op when push
// is not configured or the user has no subscriptions.
func (n *Notifier) NotifyUser(ctx context.Context, userID, title string, opts Options) int {
	if !n.service.Enabled() {
		return 0
	}
	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		n.logger.Error("list push subscriptions", "user", userID, "error", err)
		return 0
	}

	sent, expired := n.service.SendLocal(ctx, subs, title, opts)
	for _, sub := range expired {
		if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			n.logger.Warn("remove expired push subscription", "id", sub.ID, "error", err)
		}
	}
	if len(subs) > 0 {
		n.logger.Info("local notification sent", "user", userID, "sent", sent, "expired", len(expired))
	}
	return sent
}
