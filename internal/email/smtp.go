package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Dialer is the part of *gomail.Dialer used to deliver messages.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTP struct {
	dialer Dialer
	from   string
}

func NewSMTP(host string, port int, username, password, from string) *SMTP {
	return &SMTP{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

// NewSMTPWithDialer is NewSMTP with a caller supplied dialer.
func NewSMTPWithDialer(d Dialer, from string) *SMTP {
	return &SMTP{dialer: d, from: from}
}

func (s *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send smtp email: %w", err)
	}
	return nil
}
