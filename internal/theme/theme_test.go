package theme

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetDefault(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := Get(req); got != Dark {
		t.Errorf("Get = %q, want %q", got, Dark)
	}

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "purple"})
	if got := Get(req); got != Dark {
		t.Errorf("Get with unknown value = %q, want %q", got, Dark)
	}
}

// toggleWith runs Toggle for a request carrying the given cookie and returns
// the new value plus the cookie that was written.
func toggleWith(t *testing.T, current *http.Cookie) (Preference, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest("POST", "/theme/toggle", nil)
	if current != nil {
		req.AddCookie(current)
	}
	rec := httptest.NewRecorder()
	got := Toggle(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	return got, cookies[0]
}

func TestToggleTwiceRestores(t *testing.T) {
	first, c1 := toggleWith(t, nil)
	if first != Light {
		t.Errorf("first toggle = %q, want %q", first, Light)
	}
	if c1.Value != string(first) {
		t.Errorf("cookie = %q, want %q", c1.Value, first)
	}

	second, c2 := toggleWith(t, c1)
	if second != Dark {
		t.Errorf("second toggle = %q, want %q", second, Dark)
	}
	if c2.Value != string(second) {
		t.Errorf("cookie = %q, want %q", c2.Value, second)
	}
}

func TestSetCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	Set(rec, Light)

	c := rec.Result().Cookies()[0]
	if c.Path != "/" {
		t.Errorf("Path = %q, want /", c.Path)
	}
	if c.MaxAge <= 0 {
		t.Errorf("MaxAge = %d, want persistent cookie", c.MaxAge)
	}
}

func TestClass(t *testing.T) {
	if Light.Class() != "light" {
		t.Errorf("Light.Class() = %q", Light.Class())
	}
	if Preference("").Class() != "dark" {
		t.Errorf("empty preference class = %q, want dark", Preference("").Class())
	}
}
