// Package fcm fans notifications out to devices through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/dukerupert/academy/internal/config"
)

// maxBatch is the FCM limit on tokens per multicast request.
const maxBatch = 500

// Notification is the wire shape accepted by /api/send-notification.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon,omitempty"`
	Badge string            `json:"badge,omitempty"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type Result struct {
	SuccessCount int
	FailureCount int
	// Unregistered holds tokens FCM no longer recognizes.
	Unregistered []string
}

// Messaging is the part of *messaging.Client used here.
type Messaging interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Client struct {
	msg     Messaging
	logger  *slog.Logger
	baseURL *url.URL
}

type Option func(*Client)

// WithBaseURL resolves relative notification links against u. FCM only
// accepts absolute https links, so without a usable base they are dropped.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
			c.baseURL = parsed
		}
	}
}

func New(msg Messaging, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{msg: msg, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewApp initializes the Firebase Admin SDK from configuration. Without a
// credentials file the SDK falls back to application default credentials.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fbcfg *firebase.Config
	if cfg.ProjectID != "" {
		fbcfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbcfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	return app, nil
}

// Send delivers n to every token, batching as needed. A failed batch is
// logged and counted as failures; the remaining batches are still sent.
func (c *Client) Send(ctx context.Context, tokens []string, n Notification) (Result, error) {
	var res Result
	if len(tokens) == 0 {
		return res, nil
	}

	var lastErr error
	for start := 0; start < len(tokens); start += maxBatch {
		end := min(start+maxBatch, len(tokens))
		batch := tokens[start:end]

		resp, err := c.msg.SendEachForMulticast(ctx, c.buildMessage(batch, n))
		if err != nil {
			c.logger.Error("fcm multicast failed", "tokens", len(batch), "error", err)
			res.FailureCount += len(batch)
			lastErr = err
			continue
		}
		res.SuccessCount += resp.SuccessCount
		res.FailureCount += resp.FailureCount
		for i, r := range resp.Responses {
			if r == nil || r.Success || i >= len(batch) {
				continue
			}
			if messaging.IsUnregistered(r.Error) {
				res.Unregistered = append(res.Unregistered, batch[i])
			}
		}
	}

	if res.SuccessCount == 0 && lastErr != nil {
		return res, fmt.Errorf("send fcm multicast: %w", lastErr)
	}
	return res, nil
}

func (c *Client) buildMessage(tokens []string, n Notification) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  n.Icon,
				Badge: n.Badge,
				Tag:   n.Tag,
			},
		},
	}
	if link := c.webLink(n.Data["url"]); link != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}
	return msg
}

// webLink returns raw as an absolute https URL, or "" when it can't be one.
func (c *Client) webLink(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		if c.baseURL == nil {
			return ""
		}
		u = c.baseURL.ResolveReference(u)
	}
	if u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}
