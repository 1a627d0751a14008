// Package nav builds the navigation header shown on every page.
package nav

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/settings"
	"github.com/dukerupert/academy/internal/theme"
)

const fetchTimeout = 2 * time.Second

type Link struct {
	Label  string
	Href   string
	Active bool
}

// Links returns the header links in display order.
func Links(communityEnabled bool) []Link {
	links := []Link{
		{Label: "Home", Href: "/"},
		{Label: "Courses", Href: "/courses"},
		{Label: "Announcements", Href: "/announcements"},
	}
	if communityEnabled {
		links = append(links, Link{Label: "Community", Href: "/community"})
	}
	return links
}

// Header is the view model for the header template.
type Header struct {
	SiteName         string
	Links            []Link
	Theme            theme.Preference
	SignedIn         bool
	IsAdmin          bool
	Email            string
	Query            string
	CommunityEnabled bool
}

type GeneralSource interface {
	General(ctx context.Context) (model.GeneralSettings, error)
}

type Builder struct {
	source  GeneralSource
	timeout time.Duration
	logger  *slog.Logger
}

func NewBuilder(source GeneralSource, logger *slog.Logger) *Builder {
	return &Builder{source: source, timeout: fetchTimeout, logger: logger}
}

// Build assembles the header for r. The general settings fetch is best
// effort: failure or a slow store falls back to the defaults.
func (b *Builder) Build(ctx context.Context, r *http.Request) Header {
	general := b.general(ctx)

	h := Header{
		SiteName:         general.SiteName,
		Links:            Links(general.CommunityEnabled),
		Theme:            theme.Get(r),
		Query:            strings.TrimSpace(r.URL.Query().Get("search")),
		CommunityEnabled: general.CommunityEnabled,
	}
	if ac, ok := auth.FromContext(ctx); ok {
		h.SignedIn = true
		h.IsAdmin = ac.Role == model.RoleAdmin
		h.Email = ac.Email
	}
	for i := range h.Links {
		h.Links[i].Active = isActive(h.Links[i].Href, r.URL.Path)
	}
	return h
}

func (b *Builder) general(ctx context.Context) model.GeneralSettings {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		g   model.GeneralSettings
		err error
	}
	ch := make(chan result, 1)
	go func() {
		g, err := b.source.General(ctx)
		ch <- result{g, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			b.logger.Warn("header settings fetch failed, using defaults", "error", res.err)
			return settings.DefaultGeneral()
		}
		return res.g
	case <-ctx.Done():
		b.logger.Warn("header settings fetch timed out, using defaults", "error", ctx.Err())
		return settings.DefaultGeneral()
	}
}

func isActive(href, path string) bool {
	if href == "/" {
		return path == "/"
	}
	return path == href || strings.HasPrefix(path, href+"/")
}

// SearchURL returns the course listing URL for query. Blank queries report
// false and must not navigate.
func SearchURL(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}
	return "/courses?search=" + url.QueryEscape(query), true
}
