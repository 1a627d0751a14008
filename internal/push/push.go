package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/academy/internal/model"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

const (
	DefaultIcon  = "/static/icons/icon-192.png"
	DefaultBadge = "/static/icons/badge-72.png"
)

// Options mirror the Notification options understood by sw.js.
type Options struct {
	Body    string            `json:"body,omitempty"`
	Icon    string            `json:"icon,omitempty"`
	Badge   string            `json:"badge,omitempty"`
	Vibrate []int             `json:"vibrate,omitempty"`
	Tag     string            `json:"tag,omitempty"`
	URL     string            `json:"url,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		Icon:    DefaultIcon,
		Badge:   DefaultBadge,
		Vibrate: []int{200, 100, 200},
	}
}

// Merge returns o overlaid with every field set in over.
func (o Options) Merge(over Options) Options {
	if over.Body != "" {
		o.Body = over.Body
	}
	if over.Icon != "" {
		o.Icon = over.Icon
	}
	if over.Badge != "" {
		o.Badge = over.Badge
	}
	if over.Vibrate != nil {
		o.Vibrate = over.Vibrate
	}
	if over.Tag != "" {
		o.Tag = over.Tag
	}
	if over.URL != "" {
		o.URL = over.URL
	}
	if over.Data != nil {
		o.Data = over.Data
	}
	return o
}

// Payload is the JSON sent to the push service and read by sw.js.
type Payload struct {
	Title string `json:"title"`
	Options
}

type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	httpClient webpush.HTTPClient
}

type Option func(*Service)

func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(s *Service) { s.httpClient = c }
}

func NewService(publicKey, privateKey, subscriber string, opts ...Option) *Service {
	s := &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether VAPID keys are configured.
func (s *Service) Enabled() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	if s == nil {
		return ""
	}
	return s.publicKey
}

func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
		Topic:           topic(payload.Tag),
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// SendLocal shows a notification on each of subs with the default options
// merged under opts. It returns how many were delivered and which
// subscriptions have expired. An unconfigured service sends nothing.
func (s *Service) SendLocal(ctx context.Context, subs []model.PushSubscription, title string, opts Options) (int, []model.PushSubscription) {
	if !s.Enabled() || len(subs) == 0 {
		return 0, nil
	}
	payload := Payload{Title: title, Options: DefaultOptions().Merge(opts)}

	sent := 0
	var expired []model.PushSubscription
	for i := range subs {
		err := s.Send(ctx, &subs[i], payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			expired = append(expired, subs[i])
		}
	}
	return sent, expired
}

// topic keeps a Web Push Topic within the 32 URL-safe characters allowed;
// anything else is dropped rather than rejected by the push service.
func topic(tag string) string {
	if len(tag) > 32 {
		return ""
	}
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return ""
		}
	}
	return tag
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}
