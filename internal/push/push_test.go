package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/academy/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestOptionsMerge(t *testing.T) {
	got := DefaultOptions().Merge(Options{Body: "Enrolled", Icon: "/custom.png"})

	if got.Icon != "/custom.png" {
		t.Errorf("icon = %q, caller value should win", got.Icon)
	}
	if got.Badge != DefaultBadge {
		t.Errorf("badge = %q, want default", got.Badge)
	}
	if len(got.Vibrate) != 3 || got.Vibrate[0] != 200 {
		t.Errorf("vibrate = %v, want default pattern", got.Vibrate)
	}
	if got.Body != "Enrolled" {
		t.Errorf("body = %q", got.Body)
	}
}

func TestPayloadJSONFlattensOptions(t *testing.T) {
	data, err := json.Marshal(Payload{Title: "Hi", Options: Options{Body: "there", Tag: "t"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	json.Unmarshal(data, &m)
	if m["title"] != "Hi" || m["body"] != "there" || m["tag"] != "t" {
		t.Errorf("payload = %s", data)
	}
}

func TestTopic(t *testing.T) {
	if topic("payment-inv_1") != "payment-inv_1" {
		t.Error("url-safe tag should be kept")
	}
	if topic("has space") != "" {
		t.Error("unsafe tag should be dropped")
	}
}

// testSubscription returns a subscription with real client keys so the
// payload can be encrypted.
func testSubscription(t *testing.T, endpoint string) model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	secret := make([]byte, 16)
	rand.Read(secret)
	return model.PushSubscription{
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(secret),
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(pub, priv, "mailto:test@example.com")
}

func TestSendLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("expected VAPID authorization header")
		}
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := newTestService(t)
	subs := []model.PushSubscription{
		testSubscription(t, srv.URL+"/ok"),
		testSubscription(t, srv.URL+"/gone"),
	}

	sent, expired := svc.SendLocal(context.Background(), subs, "Payment confirmed", Options{Body: "Enrolled"})
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(expired) != 1 || expired[0].Endpoint != srv.URL+"/gone" {
		t.Errorf("expired = %+v", expired)
	}
}

func TestSendLocalUnconfigured(t *testing.T) {
	svc := NewService("", "", "")
	sent, expired := svc.SendLocal(context.Background(), []model.PushSubscription{{Endpoint: "http://x"}}, "t", Options{})
	if sent != 0 || expired != nil {
		t.Errorf("sent = %d, expired = %v; want silent no-op", sent, expired)
	}

	var nilSvc *Service
	if nilSvc.Enabled() {
		t.Error("nil service should be disabled")
	}
}
