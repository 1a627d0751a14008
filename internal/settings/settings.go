// Package settings loads and saves the site-wide configuration documents
// (general, payment, pwa) and supplies their defaults.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/store"
	"github.com/dukerupert/academy/internal/websocket"
)

// DefaultGeneral is used wherever no general document has been saved or it
// cannot be read. Community is on unless an admin turns it off.
func DefaultGeneral() model.GeneralSettings {
	return model.GeneralSettings{
		SiteName:         "Academy",
		SiteDescription:  "Learn at your own pace",
		CommunityEnabled: true,
	}
}

func DefaultPayment() model.PaymentSettings {
	return model.PaymentSettings{}
}

func DefaultPWA() model.PWASettings {
	return model.PWASettings{
		AppName:         "Academy",
		AppShortName:    "Academy",
		ThemeColor:      "#0f172a",
		BackgroundColor: "#0f172a",
	}
}

// Bundle is all three documents together, as edited on the admin page.
type Bundle struct {
	General model.GeneralSettings
	Payment model.PaymentSettings
	PWA     model.PWASettings
}

func Defaults() Bundle {
	return Bundle{General: DefaultGeneral(), Payment: DefaultPayment(), PWA: DefaultPWA()}
}

type SaveResult struct {
	// BrandingChanged is set when any PWA field differs from what was stored,
	// meaning manifest consumers need a reload.
	BrandingChanged bool
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type Service struct {
	store  *store.SettingsStore
	hub    Broadcaster
	logger *slog.Logger
}

// NewService creates a Service. hub may be nil.
func NewService(s *store.SettingsStore, hub Broadcaster, logger *slog.Logger) *Service {
	return &Service{store: s, hub: hub, logger: logger}
}

// load decodes the stored document over dst, which must already hold the
// defaults. Absent documents and absent keys keep their defaults; unknown
// keys are ignored.
func (s *Service) load(ctx context.Context, t model.SettingsType, dst any) error {
	doc, err := s.store.Get(ctx, t)
	if err != nil {
		return err
	}
	if doc == nil || len(doc.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(doc.Data, dst); err != nil {
		return fmt.Errorf("decode %s settings: %w", t, err)
	}
	return nil
}

// General returns the general settings. On error the defaults are returned
// alongside it so callers can degrade.
func (s *Service) General(ctx context.Context) (model.GeneralSettings, error) {
	v := DefaultGeneral()
	if err := s.load(ctx, model.SettingsGeneral, &v); err != nil {
		return DefaultGeneral(), err
	}
	return v, nil
}

func (s *Service) Payment(ctx context.Context) (model.PaymentSettings, error) {
	v := DefaultPayment()
	if err := s.load(ctx, model.SettingsPayment, &v); err != nil {
		return DefaultPayment(), err
	}
	return v, nil
}

func (s *Service) PWA(ctx context.Context) (model.PWASettings, error) {
	v := DefaultPWA()
	if err := s.load(ctx, model.SettingsPWA, &v); err != nil {
		return DefaultPWA(), err
	}
	return v, nil
}

func (s *Service) LoadAll(ctx context.Context) (Bundle, error) {
	var (
		b   Bundle
		err error
	)
	if b.General, err = s.General(ctx); err != nil {
		return Defaults(), err
	}
	if b.Payment, err = s.Payment(ctx); err != nil {
		return Defaults(), err
	}
	if b.PWA, err = s.PWA(ctx); err != nil {
		return Defaults(), err
	}
	return b, nil
}

// SaveAll validates and stores all three documents. Each type is written by
// key, so repeated saves update the same row.
func (s *Service) SaveAll(ctx context.Context, b Bundle) (SaveResult, error) {
	if err := check(b.General, b.Payment, b.PWA); err != nil {
		return SaveResult{}, err
	}

	prev, err := s.PWA(ctx)
	if err != nil {
		// Unreadable previous branding counts as changed.
		s.logger.Warn("load previous pwa settings", "error", err)
		prev = model.PWASettings{}
	}

	docs := make(map[model.SettingsType][]byte, 3)
	for t, v := range map[model.SettingsType]any{
		model.SettingsGeneral: b.General,
		model.SettingsPayment: b.Payment,
		model.SettingsPWA:     b.PWA,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return SaveResult{}, fmt.Errorf("encode %s settings: %w", t, err)
		}
		docs[t] = data
	}

	if err := s.store.PutAll(ctx, docs); err != nil {
		return SaveResult{}, fmt.Errorf("save settings: %w", err)
	}

	res := SaveResult{BrandingChanged: prev != b.PWA}
	s.logger.Info("settings saved", "branding_changed", res.BrandingChanged)
	if s.hub != nil {
		s.hub.Broadcast(websocket.NewMessage("settings", "updated", "", map[string]any{
			"brandingChanged": res.BrandingChanged,
		}))
	}
	return res, nil
}
