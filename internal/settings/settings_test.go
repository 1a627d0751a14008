package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/academy/internal/database"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/store"
	"github.com/dukerupert/academy/internal/websocket"
)

type recordingHub struct {
	msgs []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.msgs = append(h.msgs, msg)
}

func setupService(t *testing.T) (*Service, *store.SettingsStore, *recordingHub) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ss := store.NewSettingsStore(db)
	hub := &recordingHub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(ss, hub, logger), ss, hub
}

func TestLoadAllDefaults(t *testing.T) {
	svc, _, _ := setupService(t)

	b, err := svc.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if b != Defaults() {
		t.Errorf("bundle = %+v, want defaults", b)
	}
	if !b.General.CommunityEnabled {
		t.Error("community should default to enabled")
	}
}

func TestGeneralMergesOverDefaults(t *testing.T) {
	svc, ss, _ := setupService(t)
	ctx := context.Background()

	// siteName only; communityEnabled absent, plus an unknown key.
	if err := ss.Put(ctx, model.SettingsGeneral, []byte(`{"siteName":"Code School","legacyFlag":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	g, err := svc.General(ctx)
	if err != nil {
		t.Fatalf("general: %v", err)
	}
	if g.SiteName != "Code School" {
		t.Errorf("SiteName = %q, want Code School", g.SiteName)
	}
	if !g.CommunityEnabled {
		t.Error("absent communityEnabled should keep default true")
	}
	if g.SiteDescription != DefaultGeneral().SiteDescription {
		t.Errorf("SiteDescription = %q, want default", g.SiteDescription)
	}
}

func TestGeneralCorruptDocument(t *testing.T) {
	svc, ss, _ := setupService(t)
	ctx := context.Background()

	ss.Put(ctx, model.SettingsGeneral, []byte(`{not json`))

	g, err := svc.General(ctx)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if g != DefaultGeneral() {
		t.Errorf("general = %+v, want defaults on error", g)
	}
}

func TestSaveAllTwiceKeepsOneRowPerType(t *testing.T) {
	svc, ss, hub := setupService(t)
	ctx := context.Background()

	b := Defaults()
	b.General.CommunityEnabled = false
	if _, err := svc.SaveAll(ctx, b); err != nil {
		t.Fatalf("first save: %v", err)
	}
	b.Payment.Instructions = "Pay via bKash"
	if _, err := svc.SaveAll(ctx, b); err != nil {
		t.Fatalf("second save: %v", err)
	}

	for _, typ := range model.SettingsTypes {
		n, _ := ss.Count(ctx, typ)
		if n != 1 {
			t.Errorf("%s rows = %d, want 1", typ, n)
		}
	}

	got, _ := svc.LoadAll(ctx)
	if got.General.CommunityEnabled {
		t.Error("saved communityEnabled=false should persist")
	}
	if got.Payment.Instructions != "Pay via bKash" {
		t.Errorf("Instructions = %q", got.Payment.Instructions)
	}
	if len(hub.msgs) != 2 || hub.msgs[0].Type != "settings_updated" {
		t.Errorf("broadcasts = %+v, want 2 settings_updated", hub.msgs)
	}
}

func TestSaveAllBrandingChanged(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	b := Defaults()
	res, err := svc.SaveAll(ctx, b)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.BrandingChanged {
		t.Error("saving default branding over defaults should not count as a change")
	}

	b.General.SiteName = "Renamed"
	res, _ = svc.SaveAll(ctx, b)
	if res.BrandingChanged {
		t.Error("general changes are not branding")
	}

	b.PWA.ThemeColor = "#ff0000"
	res, _ = svc.SaveAll(ctx, b)
	if !res.BrandingChanged {
		t.Error("theme color change should be reported")
	}
}

func TestSaveAllValidation(t *testing.T) {
	svc, ss, hub := setupService(t)
	ctx := context.Background()

	b := Defaults()
	b.PWA.AppIcon = "not a url"
	b.PWA.ThemeColor = "red"

	_, err := svc.SaveAll(ctx, b)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want *ValidationError", err)
	}
	if _, ok := verr.Fields["appIcon"]; !ok {
		t.Errorf("fields = %v, want appIcon", verr.Fields)
	}
	if _, ok := verr.Fields["themeColor"]; !ok {
		t.Errorf("fields = %v, want themeColor", verr.Fields)
	}

	if n, _ := ss.Count(ctx, model.SettingsPWA); n != 0 {
		t.Error("invalid save should not write")
	}
	if len(hub.msgs) != 0 {
		t.Error("invalid save should not broadcast")
	}
}

func TestManifest(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	m := svc.Manifest(ctx)
	if m.Name != "Academy" || m.Display != "standalone" {
		t.Errorf("manifest = %+v", m)
	}
	if len(m.Icons) != 2 || m.Icons[0].Src != defaultIcon192 {
		t.Errorf("icons = %+v, want bundled icons", m.Icons)
	}

	b := Defaults()
	b.PWA.AppIcon = "https://i.ibb.co/abc/icon.png"
	b.PWA.AppShortName = ""
	if _, err := svc.SaveAll(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	m = svc.Manifest(ctx)
	if m.Icons[0].Src != "https://i.ibb.co/abc/icon.png" {
		t.Errorf("icon = %q, want custom icon", m.Icons[0].Src)
	}
	if m.ShortName != m.Name {
		t.Errorf("ShortName = %q, want fallback to name %q", m.ShortName, m.Name)
	}
}
