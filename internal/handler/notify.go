package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/email"
	"github.com/dukerupert/academy/internal/fcm"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/notify"
)

// TokenSaver registers admin device tokens.
type TokenSaver interface {
	SaveAdminToken(ctx context.Context, userID, token string) *model.AdminToken
}

// Deliverer sends a notification payload and reports per-token results.
type Deliverer interface {
	Deliver(ctx context.Context, p notify.Payload) (fcm.Result, error)
}

type NotifyHandler struct {
	tokens   TokenSaver
	fanout   Deliverer
	mailer   email.Sender
	validate *validator.Validate
	logger   *slog.Logger
}

// NewNotifyHandler creates a NotifyHandler. fanout is nil when FCM is not
// configured.
func NewNotifyHandler(tokens TokenSaver, fanout Deliverer, mailer email.Sender, logger *slog.Logger) *NotifyHandler {
	return &NotifyHandler{
		tokens:   tokens,
		fanout:   fanout,
		mailer:   mailer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// SaveFCMToken handles POST /api/admin/fcm-token
func (h *NotifyHandler) SaveFCMToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	tok := h.tokens.SaveAdminToken(r.Context(), auth.UserID(r.Context()), req.Token)
	writeJSON(w, http.StatusOK, map[string]any{"saved": tok != nil})
}

// SendNotification handles POST /api/send-notification
func (h *NotifyHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	if h.fanout == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "messaging not configured"})
		return
	}

	var p notify.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON"})
		return
	}
	if len(p.Tokens) == 0 || strings.TrimSpace(p.Notification.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "tokens and notification.title are required"})
		return
	}

	res, err := h.fanout.Deliver(r.Context(), p)
	if err != nil {
		h.logger.Error("send notification", "tokens", len(p.Tokens), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success":      false,
			"error":        "failed to send notification",
			"successCount": res.SuccessCount,
			"failureCount": res.FailureCount,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"successCount": res.SuccessCount,
		"failureCount": res.FailureCount,
	})
}

type sendEmailRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

// SendEmail handles POST /api/send-email
func (h *NotifyHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "to, subject and body are required"})
		return
	}

	if err := h.mailer.Send(r.Context(), req.To, req.Subject, req.Body); err != nil {
		if errors.Is(err, email.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "email not configured"})
			return
		}
		h.logger.Error("send email", "to", req.To, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": "failed to send email"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
