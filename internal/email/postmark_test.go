package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gopkg.in/gomail.v2"

	"github.com/dukerupert/academy/internal/config"
)

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}

func TestPostmarkSend(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))

	err := client.Send(context.Background(), "alice@example.com", "Your receipt", "<p>Thanks</p>")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.HtmlBody != "<p>Thanks</p>" {
		t.Errorf("HtmlBody = %q", received.HtmlBody)
	}
}

func TestPostmarkAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))

	if err := client.Send(context.Background(), "alice@example.com", "s", "b"); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestPostmarkNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")
	if client.Configured() {
		t.Error("expected Configured() = false")
	}
	if err := client.Send(context.Background(), "a@example.com", "s", "b"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPSend(t *testing.T) {
	d := &fakeDialer{}
	s := NewSMTPWithDialer(d, "noreply@example.com")

	if err := s.Send(context.Background(), "bob@example.com", "Hello", "<b>hi</b>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "bob@example.com" {
		t.Errorf("To = %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Hello" {
		t.Errorf("Subject = %v", got)
	}
}

func TestSMTPSendError(t *testing.T) {
	s := NewSMTPWithDialer(&fakeDialer{err: errors.New("refused")}, "noreply@example.com")
	if err := s.Send(context.Background(), "bob@example.com", "Hello", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewPicksSender(t *testing.T) {
	if _, ok := New(config.EmailConfig{PostmarkToken: "t", SMTPHost: "smtp.example.com"}).(*Client); !ok {
		t.Error("postmark token should select Postmark")
	}
	if _, ok := New(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587}).(*SMTP); !ok {
		t.Error("smtp host should select SMTP")
	}
	err := New(config.EmailConfig{}).Send(context.Background(), "a@example.com", "s", "b")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
