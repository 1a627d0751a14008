package handler

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"text/template"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/config"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/push"
	"github.com/dukerupert/academy/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	local     LocalNotifier
	logger    *slog.Logger

	sw   []byte
	fcmw []byte
}

// NewPushHandler reads the service workers from static. The messaging
// worker is rendered once with the public Firebase config.
func NewPushHandler(ps *store.PushStore, svc *push.Service, local LocalNotifier, static fs.FS, fb config.FirebaseConfig, logger *slog.Logger) (*PushHandler, error) {
	sw, err := fs.ReadFile(static, "static/sw.js")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(static, "static/firebase-messaging-sw.js")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		config.FirebaseConfig
		Active bool
	}{fb, fb.WebEnabled()})
	if err != nil {
		return nil, err
	}
	return &PushHandler{pushStore: ps, service: svc, local: local, logger: logger, sw: sw, fcmw: buf.Bytes()}, nil
}

type subscribeRequest struct {
	Permission string `json:"permission"`
	Endpoint   string `json:"endpoint"`
	Keys       struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe. A refused permission is a
// normal outcome, reported with 200.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	switch req.Permission {
	case "denied", "default":
		writeJSON(w, http.StatusOK, map[string]any{"subscribed": false, "status": req.Permission})
		return
	}
	if !h.service.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"subscribed": false, "status": "unavailable"})
		return
	}

	p256dh, authKey := req.Keys.P256dh, req.Keys.Auth
	if p256dh == "" {
		p256dh, authKey = req.P256dh, req.Auth
	}
	if req.Endpoint == "" || p256dh == "" || authKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint, p256dh, and auth are required"})
		return
	}

	sub, err := h.pushStore.CreateSubscription(r.Context(), userID, req.Endpoint, p256dh, authKey, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"subscribed": true, "status": "granted", "subscription": sub})
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.pushStore.DeleteSubscription(r.Context(), id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	sent := h.local.NotifyUser(r.Context(), auth.UserID(r.Context()), "Test notification", push.Options{
		Body: "Push notifications are working!",
		Tag:  "test",
		URL:  "/",
	})
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// ServiceWorker handles GET /sw.js
func (h *PushHandler) ServiceWorker(w http.ResponseWriter, r *http.Request) {
	serveWorker(w, h.sw)
}

// MessagingServiceWorker handles GET /firebase-messaging-sw.js
func (h *PushHandler) MessagingServiceWorker(w http.ResponseWriter, r *http.Request) {
	serveWorker(w, h.fcmw)
}

func serveWorker(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(body)
}
