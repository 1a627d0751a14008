package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/academy/internal/fcm"
	"github.com/dukerupert/academy/internal/store"
)

// Sender delivers a payload to its tokens.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// HTTPSender posts payloads to an external fan-out service.
type HTTPSender struct {
	endpoint   string
	httpClient *http.Client
}

type HTTPSenderOption func(*HTTPSender)

func WithHTTPClient(c *http.Client) HTTPSenderOption {
	return func(s *HTTPSender) { s.httpClient = c }
}

func NewHTTPSender(endpoint string, opts ...HTTPSenderOption) *HTTPSender {
	s := &HTTPSender{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSender) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// FanOut sends through FCM in-process and forgets tokens FCM reports as
// unregistered. It backs both the dispatcher and /api/send-notification.
type FanOut struct {
	client *fcm.Client
	tokens *store.AdminTokenStore
}

func NewFanOut(client *fcm.Client, tokens *store.AdminTokenStore) *FanOut {
	return &FanOut{client: client, tokens: tokens}
}

func (f *FanOut) Deliver(ctx context.Context, p Payload) (fcm.Result, error) {
	res, err := f.client.Send(ctx, p.Tokens, p.Notification)
	if len(res.Unregistered) > 0 {
		if derr := f.tokens.DeleteTokens(ctx, res.Unregistered); derr != nil {
			return res, fmt.Errorf("remove unregistered tokens: %w", derr)
		}
	}
	return res, err
}

func (f *FanOut) Send(ctx context.Context, p Payload) error {
	_, err := f.Deliver(ctx, p)
	return err
}
