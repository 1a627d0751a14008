package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/academy/internal/fcm"
	"github.com/dukerupert/academy/internal/model"
)

const (
	queueSize  = 64
	jobTimeout = 10 * time.Second
)

type TokenLister interface {
	List(ctx context.Context) ([]model.AdminToken, error)
}

type job struct {
	kind  string
	event Event
	build func(Event) fcm.Notification
}

// Dispatcher delivers admin notifications from a background worker so the
// request that triggered them never waits on, or fails because of, delivery.
type Dispatcher struct {
	tokens TokenLister
	sender Sender
	logger *slog.Logger
	queue  chan job

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a Dispatcher. A nil sender turns delivery into a
// logged no-op.
func NewDispatcher(tokens TokenLister, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tokens: tokens,
		sender: sender,
		logger: logger,
		queue:  make(chan job, queueSize),
	}
}

// Start runs the worker until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				d.drain()
				return
			case j := <-d.queue:
				d.deliver(context.WithoutCancel(ctx), j)
			}
		}
	}()
}

// Stop cancels the worker and delivers whatever is still queued, including
// events enqueued after the start context was cancelled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	d.drain()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			d.deliver(context.Background(), j)
		default:
			return
		}
	}
}

func (d *Dispatcher) NotifyAdminsOfCheckout(e Event) {
	d.enqueue(job{kind: "checkout", event: e, build: checkoutNotification})
}

func (d *Dispatcher) NotifyAdminsOfEnrollment(e Event) {
	d.enqueue(job{kind: "enrollment", event: e, build: enrollmentNotification})
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.queue <- j:
	default:
		d.logger.Warn("notification queue full, dropping", "kind", j.kind, "reference", j.event.Reference)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	if d.sender == nil {
		d.logger.Debug("no notification sender configured", "kind", j.kind)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	rows, err := d.tokens.List(ctx)
	if err != nil {
		d.logger.Error("list admin tokens", "kind", j.kind, "error", err)
		return
	}
	var tokens []string
	for _, row := range rows {
		if row.Token != "" {
			tokens = append(tokens, row.Token)
		}
	}
	if len(tokens) == 0 {
		d.logger.Debug("no admin tokens, skipping notification", "kind", j.kind)
		return
	}

	p := Payload{Tokens: tokens, Notification: j.build(j.event)}
	if err := d.sender.Send(ctx, p); err != nil {
		d.logger.Error("send admin notification", "kind", j.kind, "reference", j.event.Reference, "error", err)
		return
	}
	d.logger.Info("admin notification sent", "kind", j.kind, "reference", j.event.Reference, "tokens", len(tokens))
}
