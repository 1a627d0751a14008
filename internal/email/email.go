// Package email sends transactional mail (enrollment receipts, admin
// messages) through Postmark or a plain SMTP relay.
package email

import (
	"context"
	"errors"

	"github.com/dukerupert/academy/internal/config"
)

var ErrNotConfigured = errors.New("email not configured")

type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// New picks Postmark when a server token is set, then SMTP when a host is
// set, and otherwise a sender that always reports ErrNotConfigured.
func New(cfg config.EmailConfig) Sender {
	switch {
	case cfg.PostmarkToken != "":
		return NewClient(cfg.PostmarkToken, cfg.From)
	case cfg.SMTPHost != "":
		return NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From)
	default:
		return disabled{}
	}
}

type disabled struct{}

func (disabled) Send(context.Context, string, string, string) error {
	return ErrNotConfigured
}
