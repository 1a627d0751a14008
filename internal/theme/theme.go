// Package theme stores the dark/light UI preference in a cookie.
package theme

import (
	"net/http"
	"time"
)

type Preference string

const (
	Dark  Preference = "dark"
	Light Preference = "light"

	// Default applies when no valid preference has been stored.
	Default = Dark

	CookieName = "theme"
	cookieAge  = 365 * 24 * time.Hour
)

// Parse maps a stored value to a Preference, falling back to Default.
func Parse(s string) Preference {
	switch Preference(s) {
	case Dark, Light:
		return Preference(s)
	default:
		return Default
	}
}

// Opposite returns the other preference.
func (p Preference) Opposite() Preference {
	if p == Light {
		return Dark
	}
	return Light
}

// Class is the class applied to the root element.
func (p Preference) Class() string {
	return string(Parse(string(p)))
}

// Get reads the viewer's preference.
func Get(r *http.Request) Preference {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Default
	}
	return Parse(c.Value)
}

// Cookie builds the cookie that stores p.
func Cookie(p Preference) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    string(Parse(string(p))),
		Path:     "/",
		MaxAge:   int(cookieAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
}

// Set persists p for the viewer.
func Set(w http.ResponseWriter, p Preference) {
	http.SetCookie(w, Cookie(p))
}

// Toggle flips the viewer's preference, persists it, and returns the new value.
func Toggle(w http.ResponseWriter, r *http.Request) Preference {
	next := Get(r).Opposite()
	Set(w, next)
	return next
}
