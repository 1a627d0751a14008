package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/middleware"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/store"
)

const sessionMaxAge = 30 * 24 * 60 * 60

// IdentityVerifier checks an identity provider token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.Identity, error)
}

type AuthHandler struct {
	site         *Site
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	verifier     IdentityVerifier
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. verifier is nil when Firebase is
// not configured, which leaves only password sign-in.
func NewAuthHandler(site *Site, us *store.UserStore, ss *store.SessionStore, verifier IdentityVerifier, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{site: site, userStore: us, sessionStore: ss, verifier: verifier, logger: logger}
}

type loginData struct {
	Next  string
	Email string
	Error string
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.UserID(r.Context()) != "" {
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	h.site.page(w, r, http.StatusOK, "login.html", "Sign in", loginData{Next: safeNext(r.URL.Query().Get("next"))})
}

// Login handles POST /login with an email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	fail := func() {
		h.site.page(w, r, http.StatusUnauthorized, "login.html", "Sign in", loginData{
			Next:  next,
			Email: emailAddr,
			Error: "Invalid email or password",
		})
	}

	if emailAddr == "" || password == "" {
		fail()
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil || user.PasswordHash == "" || auth.CheckPassword(user.PasswordHash, password) != nil {
		fail()
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

type sessionRequest struct {
	IDToken string `json:"idToken"`
	Next    string `json:"next"`
}

// Session handles POST /session: it exchanges a Firebase ID token for a
// server session, creating the user on first sign-in.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "identity provider not configured"})
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	id, err := h.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("verify id token", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	if id.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "account has no email address"})
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), id.Email)
	if err != nil {
		h.logger.Error("session user lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sign in"})
		return
	}
	if user == nil {
		user, err = h.userStore.Create(r.Context(), id.UID, id.Email, id.Name, model.RoleStudent)
		if err != nil {
			h.logger.Error("create user", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sign in"})
			return
		}
		h.logger.Info("user registered", "user", user.ID)
	}

	if err := h.startSession(w, r, user); err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sign in"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": safeNext(req.Next)})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok && ac.SessionID != 0 {
		if err := h.sessionStore.Delete(r.Context(), ac.SessionID); err != nil {
			h.logger.Warn("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	redirect(w, r, "/")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) error {
	sess, err := h.sessionStore.Create(r.Context(), user.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return nil
}

// safeNext only allows local paths as post-login destinations.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
