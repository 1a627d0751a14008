package fcm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type fakeMessaging struct {
	batches [][]string
	last    *messaging.MulticastMessage
	// fail marks tokens whose send should fail.
	fail map[string]error
	err  error
}

func (f *fakeMessaging) SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.batches = append(f.batches, m.Tokens)
	f.last = m
	if f.err != nil {
		return nil, f.err
	}
	resp := &messaging.BatchResponse{}
	for _, tok := range m.Tokens {
		if err, ok := f.fail[tok]; ok {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: err})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "m-" + tok})
	}
	return resp, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendNoTokens(t *testing.T) {
	fake := &fakeMessaging{}
	res, err := New(fake, quietLogger()).Send(context.Background(), nil, Notification{Title: "x"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.batches) != 0 {
		t.Error("no tokens should mean no FCM call")
	}
	if res.SuccessCount != 0 {
		t.Errorf("success = %d", res.SuccessCount)
	}
}

func TestSendBatches(t *testing.T) {
	tokens := make([]string, 1201)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	fake := &fakeMessaging{}

	res, err := New(fake, quietLogger()).Send(context.Background(), tokens, Notification{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(fake.batches))
	}
	if len(fake.batches[0]) != 500 || len(fake.batches[2]) != 201 {
		t.Errorf("batch sizes = %d, %d", len(fake.batches[0]), len(fake.batches[2]))
	}
	if res.SuccessCount != 1201 {
		t.Errorf("success = %d, want 1201", res.SuccessCount)
	}
}

func TestSendWebpushConfig(t *testing.T) {
	fake := &fakeMessaging{}
	n := Notification{
		Title: "New enrollment",
		Body:  "Alice enrolled",
		Icon:  "/static/icons/icon-192.png",
		Badge: "/static/icons/badge-72.png",
		Tag:   "enrollment-inv-1",
		Data:  map[string]string{"url": "/admin/enrollments"},
	}

	c := New(fake, quietLogger(), WithBaseURL("https://academy.example"))
	if _, err := c.Send(context.Background(), []string{"a"}, n); err != nil {
		t.Fatalf("send: %v", err)
	}
	wp := fake.last.Webpush
	if wp.Notification.Tag != "enrollment-inv-1" {
		t.Errorf("tag = %q", wp.Notification.Tag)
	}
	if wp.FCMOptions == nil || wp.FCMOptions.Link != "https://academy.example/admin/enrollments" {
		t.Errorf("fcm options = %+v", wp.FCMOptions)
	}
}

func TestSendPartialFailure(t *testing.T) {
	fake := &fakeMessaging{fail: map[string]error{"bad": errors.New("boom")}}

	res, err := New(fake, quietLogger()).Send(context.Background(), []string{"good", "bad"}, Notification{Title: "t"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.SuccessCount != 1 || res.FailureCount != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Unregistered) != 0 {
		t.Errorf("plain failures are not unregistered tokens: %v", res.Unregistered)
	}
}

func TestSendTransportError(t *testing.T) {
	fake := &fakeMessaging{err: errors.New("network")}

	res, err := New(fake, quietLogger()).Send(context.Background(), []string{"a", "b"}, Notification{Title: "t"})
	if err == nil {
		t.Fatal("expected error when nothing was delivered")
	}
	if res.FailureCount != 2 {
		t.Errorf("failures = %d, want 2", res.FailureCount)
	}
}

func TestWebLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		raw  string
		want string
	}{
		{"relative with https base", "https://academy.example", "/admin/settings", "https://academy.example/admin/settings"},
		{"relative with http base", "http://localhost:8080", "/admin/settings", ""},
		{"relative without base", "", "/admin/settings", ""},
		{"absolute https", "", "https://cdn.example/x", "https://cdn.example/x"},
		{"absolute http", "https://academy.example", "http://cdn.example/x", ""},
		{"empty", "https://academy.example", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.base != "" {
				opts = append(opts, WithBaseURL(tt.base))
			}
			if got := New(nil, quietLogger(), opts...).webLink(tt.raw); got != tt.want {
				t.Errorf("webLink(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// The SDK validates every message before sending; a rejected message fails
// the whole multicast with "invalid message".
func TestBuiltMessagesPassSDKValidation(t *testing.T) {
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: "academy-test"}, option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		t.Fatalf("messaging: %v", err)
	}

	// A cancelled context keeps the valid message from reaching the network.
	sendCtx, cancel := context.WithCancel(ctx)
	cancel()

	for _, base := range []string{"https://academy.example", "http://localhost:8080"} {
		c := New(client, quietLogger(), WithBaseURL(base))
		n := Notification{Title: "New enrollment", Data: map[string]string{"url": "/admin/settings"}}
		_, err := client.SendEachForMulticast(sendCtx, c.buildMessage([]string{"tok"}, n))
		if err != nil && strings.Contains(err.Error(), "invalid") {
			t.Errorf("base %s: message rejected: %v", base, err)
		}
	}
}
