package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/academy/internal/imagehost"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/settings"
)

const reloadDelayMS = 1500

// SettingsSaver loads and saves the settings documents.
type SettingsSaver interface {
	LoadAll(ctx context.Context) (settings.Bundle, error)
	SaveAll(ctx context.Context, b settings.Bundle) (settings.SaveResult, error)
}

type SettingsHandler struct {
	site     *Site
	service  SettingsSaver
	uploader imagehost.Uploader
	logger   *slog.Logger
}

func NewSettingsHandler(site *Site, svc SettingsSaver, uploader imagehost.Uploader, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{site: site, service: svc, uploader: uploader, logger: logger}
}

type settingsForm struct {
	Bundle          settings.Bundle
	Saved           bool
	BrandingChanged bool
	Error           string
}

// Page handles GET /admin/settings
func (h *SettingsHandler) Page(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.LoadAll(r.Context())
	if err != nil {
		h.logger.Warn("load settings, showing defaults", "error", err)
	}
	h.site.page(w, r, http.StatusOK, "admin_settings.html", "Settings", settingsForm{Bundle: b})
}

// Save handles POST /admin/settings
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	b := bundleFromForm(r)

	res, err := h.service.SaveAll(r.Context(), b)
	if err != nil {
		status, msg := http.StatusInternalServerError, "Failed to save settings"
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			status, msg = http.StatusBadRequest, verr.Error()
		} else {
			h.logger.Error("save settings", "error", err)
		}
		h.respond(w, r, status, settingsForm{Bundle: b, Error: msg})
		return
	}

	if res.BrandingChanged {
		trigger(w, "reload-after", map[string]int{"delay": reloadDelayMS})
	}
	h.respond(w, r, http.StatusOK, settingsForm{Bundle: b, Saved: true, BrandingChanged: res.BrandingChanged})
}

func (h *SettingsHandler) respond(w http.ResponseWriter, r *http.Request, status int, form settingsForm) {
	if isHTMX(r) {
		h.site.render.partial(w, status, "settings-form", form)
		return
	}
	h.site.page(w, r, status, "admin_settings.html", "Settings", form)
}

func bundleFromForm(r *http.Request) settings.Bundle {
	v := func(key string) string { return strings.TrimSpace(r.PostFormValue(key)) }
	return settings.Bundle{
		General: model.GeneralSettings{
			SiteName:         v("siteName"),
			SiteDescription:  v("siteDescription"),
			CommunityEnabled: v("communityEnabled") == "true",
		},
		Payment: model.PaymentSettings{
			Instructions: v("instructions"),
		},
		PWA: model.PWASettings{
			AppName:         v("appName"),
			AppShortName:    v("appShortName"),
			AppIcon:         v("appIcon"),
			AppLogo:         v("appLogo"),
			ThemeColor:      v("themeColor"),
			BackgroundColor: v("backgroundColor"),
		},
	}
}

var uploadFields = map[string]string{
	"appIcon": "App icon",
	"appLogo": "Logo",
}

// Upload handles POST /admin/settings/upload?field=appIcon|appLogo. The
// returned URL only fills the form field; nothing is saved until Save.
func (h *SettingsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	label, ok := uploadFields[field]
	if !ok {
		http.Error(w, "unknown field", http.StatusBadRequest)
		return
	}
	data := imageFieldData{Field: field, Label: label}

	fail := func(status int, msg string) {
		data.Error = msg
		h.site.render.partial(w, status, "settings-image-field", data)
	}

	r.Body = http.MaxBytesReader(w, r.Body, imagehost.MaxSize+(64<<10))
	if err := r.ParseMultipartForm(imagehost.MaxSize); err != nil {
		fail(http.StatusRequestEntityTooLarge, "Image must be 5 MB or smaller")
		return
	}
	data.URL = r.FormValue(field)

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(http.StatusBadRequest, "Choose an image to upload")
		return
	}
	defer file.Close()

	if header.Size > imagehost.MaxSize {
		fail(http.StatusRequestEntityTooLarge, "Image must be 5 MB or smaller")
		return
	}
	if _, err := imagehost.ContentType(header.Filename); err != nil {
		fail(http.StatusUnsupportedMediaType, "Only image files can be uploaded")
		return
	}
	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		fail(http.StatusUnsupportedMediaType, "Only image files can be uploaded")
		return
	}

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, imagehost.ErrNotConfigured) {
			fail(http.StatusServiceUnavailable, "Image uploads are not configured")
			return
		}
		h.logger.Error("upload image", "field", field, "error", err)
		fail(http.StatusBadGateway, "Upload failed, try again")
		return
	}

	h.logger.Info("image uploaded", "field", field, "url", url)
	data.URL = url
	h.site.render.partial(w, http.StatusOK, "settings-image-field", data)
}
