package middleware

import (
	"net/http"
	"net/url"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/store"
)

// SessionCookieName is the cookie carrying the server session token.
const SessionCookieName = "academy_session"

// LoadSession resolves the session cookie, when present and valid, into an
// AuthContext. Requests without a usable session pass through anonymously.
func LoadSession(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessionStore.GetByToken(r.Context(), cookie.Value)
			if err != nil || sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := userStore.GetByID(r.Context(), sess.UserID)
			if err != nil || user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Email:     user.Email,
				Role:      user.Role,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAuth sends anonymous requests to the login page.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIAuth is RequireAuth for JSON endpoints: 401 instead of a redirect.
func RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if r.Method == http.MethodGet && r.URL.RequestURI() != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
