package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/nav"
	"github.com/dukerupert/academy/internal/settings"
	"github.com/dukerupert/academy/internal/store"
	"github.com/dukerupert/academy/internal/theme"
)

// SiteSettings is the part of settings.Service the pages read.
type SiteSettings interface {
	General(ctx context.Context) (model.GeneralSettings, error)
	PWA(ctx context.Context) (model.PWASettings, error)
	Manifest(ctx context.Context) settings.Manifest
}

// Site is what every page needs: templates, the header and branding.
type Site struct {
	render   *Renderer
	header   *nav.Builder
	settings SiteSettings
}

func NewSite(rd *Renderer, header *nav.Builder, ss SiteSettings) *Site {
	return &Site{render: rd, header: header, settings: ss}
}

// page renders a full page with the shared layout.
func (s *Site) page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	color := settings.DefaultPWA().ThemeColor
	if pwa, err := s.settings.PWA(r.Context()); err == nil && pwa.ThemeColor != "" {
		color = pwa.ThemeColor
	}
	s.render.page(w, status, name, pageData{
		Title:      title,
		Header:     s.header.Build(r.Context(), r),
		ThemeColor: color,
		Data:       data,
	})
}

type PageHandler struct {
	site    *Site
	courses *store.CourseStore
	logger  *slog.Logger
}

func NewPageHandler(site *Site, cs *store.CourseStore, logger *slog.Logger) *PageHandler {
	return &PageHandler{site: site, courses: cs, logger: logger}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}

	courses, err := h.courses.List(r.Context(), "")
	if err != nil {
		h.logger.Error("list courses", "error", err)
	}
	if len(courses) > 6 {
		courses = courses[:6]
	}
	general, _ := h.site.settings.General(r.Context())

	h.site.page(w, r, http.StatusOK, "home.html", "", map[string]any{
		"Description": general.SiteDescription,
		"Courses":     courses,
	})
}

// Courses handles GET /courses?search=
func (h *PageHandler) Courses(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("search"))
	courses, err := h.courses.List(r.Context(), query)
	if err != nil {
		h.logger.Error("list courses", "query", query, "error", err)
		http.Error(w, "failed to load courses", http.StatusInternalServerError)
		return
	}
	h.site.page(w, r, http.StatusOK, "courses.html", "Courses", map[string]any{
		"Query":   query,
		"Courses": courses,
	})
}

func (h *PageHandler) Announcements(w http.ResponseWriter, r *http.Request) {
	h.site.page(w, r, http.StatusOK, "announcements.html", "Announcements", nil)
}

// Community 404s when an admin has switched the community off. An
// unreadable setting counts as on, like the header.
func (h *PageHandler) Community(w http.ResponseWriter, r *http.Request) {
	general, err := h.site.settings.General(r.Context())
	if err != nil {
		h.logger.Warn("load general settings", "error", err)
	}
	if !general.CommunityEnabled {
		h.NotFound(w, r)
		return
	}
	h.site.page(w, r, http.StatusOK, "community.html", "Community", nil)
}

func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

// ToggleTheme handles POST /theme/toggle
func (h *PageHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme.Toggle(w, r)
	if isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	back := r.Referer()
	if back == "" {
		back = "/"
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// Search handles POST /search. A blank query is a no-op.
func (h *PageHandler) Search(w http.ResponseWriter, r *http.Request) {
	target, ok := nav.SearchURL(r.FormValue("q"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirect(w, r, target)
}

// SearchOpen handles GET /partials/nav/search
func (h *PageHandler) SearchOpen(w http.ResponseWriter, r *http.Request) {
	h.site.render.partial(w, http.StatusOK, "nav-search-open", h.site.header.Build(r.Context(), r))
}

// SearchClose handles DELETE /partials/nav/search
func (h *PageHandler) SearchClose(w http.ResponseWriter, r *http.Request) {
	h.site.render.partial(w, http.StatusOK, "nav-search-closed", nil)
}

// SidebarOpen handles GET /partials/nav/sidebar
func (h *PageHandler) SidebarOpen(w http.ResponseWriter, r *http.Request) {
	sb := nav.NewSidebar(nav.NewTriggerLocker(w))
	sb.Open()
	h.site.render.partial(w, http.StatusOK, "nav-sidebar-open", h.site.header.Build(r.Context(), r))
}

// SidebarClose handles DELETE /partials/nav/sidebar, from the close button
// or the overlay. The browser only asks to close an open sidebar.
func (h *PageHandler) SidebarClose(w http.ResponseWriter, r *http.Request) {
	sb := nav.RestoreSidebar(nav.NewTriggerLocker(w), true)
	defer sb.Dispose()
	sb.Close()
	h.site.render.partial(w, http.StatusOK, "nav-sidebar-closed", nil)
}

// Manifest handles GET /manifest.webmanifest
func (h *PageHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/manifest+json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(h.site.settings.Manifest(r.Context()))
}
