// Package notify registers admin devices and tells admins about checkouts
// and enrollments without holding up the request that caused them.
package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/store"
)

type TokenRegistry struct {
	users  *store.UserStore
	tokens *store.AdminTokenStore
	logger *slog.Logger
}

func NewTokenRegistry(users *store.UserStore, tokens *store.AdminTokenStore, logger *slog.Logger) *TokenRegistry {
	return &TokenRegistry{users: users, tokens: tokens, logger: logger}
}

// SaveAdminToken stores the device token for an admin. It returns nil
// without writing for unknown users, non-admins and empty tokens. Failures
// are logged and also return nil.
func (r *TokenRegistry) SaveAdminToken(ctx context.Context, userID, token string) *model.AdminToken {
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		r.logger.Error("look up user for admin token", "user", userID, "error", err)
		return nil
	}
	if user == nil || !user.IsAdmin() {
		return nil
	}

	saved, err := r.tokens.Upsert(ctx, userID, token)
	if err != nil {
		r.logger.Error("save admin token", "user", userID, "error", err)
		return nil
	}
	r.logger.Info("admin token saved", "user", userID)
	return saved
}
