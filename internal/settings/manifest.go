package settings

import (
	"context"

	"github.com/dukerupert/academy/internal/model"
)

const (
	defaultIcon192 = "/static/icons/icon-192.png"
	defaultIcon512 = "/static/icons/icon-512.png"
)

type ManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// Manifest is the web app manifest served at /manifest.webmanifest.
type Manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description,omitempty"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	ThemeColor      string         `json:"theme_color,omitempty"`
	BackgroundColor string         `json:"background_color,omitempty"`
	Icons           []ManifestIcon `json:"icons"`
}

// BuildManifest renders PWA branding into a manifest. A custom icon is used
// for every size; otherwise the bundled icons are listed.
func BuildManifest(pwa model.PWASettings, general model.GeneralSettings) Manifest {
	m := Manifest{
		Name:            pwa.AppName,
		ShortName:       pwa.AppShortName,
		Description:     general.SiteDescription,
		StartURL:        "/",
		Scope:           "/",
		Display:         "standalone",
		ThemeColor:      pwa.ThemeColor,
		BackgroundColor: pwa.BackgroundColor,
	}
	if m.Name == "" {
		m.Name = general.SiteName
	}
	if m.ShortName == "" {
		m.ShortName = m.Name
	}
	if pwa.AppIcon != "" {
		m.Icons = []ManifestIcon{
			{Src: pwa.AppIcon, Sizes: "192x192", Purpose: "any"},
			{Src: pwa.AppIcon, Sizes: "512x512", Purpose: "any maskable"},
		}
	} else {
		m.Icons = []ManifestIcon{
			{Src: defaultIcon192, Sizes: "192x192", Type: "image/png", Purpose: "any"},
			{Src: defaultIcon512, Sizes: "512x512", Type: "image/png", Purpose: "any maskable"},
		}
	}
	return m
}

// Manifest loads the stored branding and builds the manifest, falling back
// to defaults for anything unreadable.
func (s *Service) Manifest(ctx context.Context) Manifest {
	pwa, err := s.PWA(ctx)
	if err != nil {
		s.logger.Warn("load pwa settings for manifest", "error", err)
	}
	general, err := s.General(ctx)
	if err != nil {
		s.logger.Warn("load general settings for manifest", "error", err)
	}
	return BuildManifest(pwa, general)
}
