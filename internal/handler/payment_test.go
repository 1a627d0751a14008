package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/academy/internal/enrollment"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/notify"
	"github.com/dukerupert/academy/internal/payment"
	"github.com/dukerupert/academy/internal/push"
)

type fakeVerifier struct {
	calls int
	last  payment.VerifyRequest
	resp  *payment.VerifyResponse
	err   error
}

func (v *fakeVerifier) VerifyPayment(_ context.Context, req payment.VerifyRequest) (*payment.VerifyResponse, error) {
	v.calls++
	v.last = req
	return v.resp, v.err
}

type fakeLocal struct {
	called chan string
}

func newFakeLocal() *fakeLocal { return &fakeLocal{called: make(chan string, 4)} }

func (l *fakeLocal) NotifyUser(ctx context.Context, userID, title string, opts push.Options) int {
	l.called <- userID + "|" + opts.Tag
	return 1
}

func verifiedResponse(replay bool) *payment.VerifyResponse {
	return &payment.VerifyResponse{
		Success:          true,
		Verified:         true,
		AlreadyProcessed: replay,
		PaymentRecord: &model.PaymentRecord{
			TransactionID: "TX1",
			InvoiceID:     "INV1",
			FinalAmount:   1500,
			Courses:       []model.CourseRef{{ID: 1, Title: "Go Basics"}},
		},
	}
}

func TestPaymentVerifyFirstTime(t *testing.T) {
	env := newTestEnv(t)
	v := &fakeVerifier{resp: verifiedResponse(false)}
	local := newFakeLocal()
	h := NewPaymentHandler(env.site, v, local, discardLogger())

	req := withUser(httptest.NewRequest("GET", "/partials/payment/verify?invoice_id=INV1&status=COMPLETED", nil), "u1", model.RoleStudent)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if v.last.InvoiceID != "INV1" || v.last.UserID != "u1" {
		t.Errorf("verify request = %+v", v.last)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Payment successful!") || !strings.Contains(body, "Go Basics") {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), `"toast"`) {
		t.Errorf("HX-Trigger = %q, want toast", rec.Header().Get("HX-Trigger"))
	}

	select {
	case got := <-local.called:
		if got != "u1|payment-TX1" {
			t.Errorf("local notify = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("local notification not sent")
	}
}

func TestPaymentVerifyReplayIsQuiet(t *testing.T) {
	env := newTestEnv(t)
	v := &fakeVerifier{resp: verifiedResponse(true)}
	local := newFakeLocal()
	h := NewPaymentHandler(env.site, v, local, discardLogger())

	req := withUser(httptest.NewRequest("GET", "/partials/payment/verify?invoiceId=INV1", nil), "u1", model.RoleStudent)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if !strings.Contains(rec.Body.String(), "Payment already confirmed") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("HX-Trigger") != "" {
		t.Error("replay should not toast")
	}
	select {
	case got := <-local.called:
		t.Errorf("replay sent a local notification: %q", got)
	default:
	}
}

func TestPaymentVerifyFailedStatusSkipsBackend(t *testing.T) {
	env := newTestEnv(t)
	v := &fakeVerifier{resp: verifiedResponse(false)}
	h := NewPaymentHandler(env.site, v, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest("GET", "/partials/payment/verify?invoice_id=INV1&status=FAILED", nil))

	if v.calls != 0 {
		t.Errorf("verifier called %d times, want 0", v.calls)
	}
	if !strings.Contains(rec.Body.String(), "not completed") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPaymentVerifyBackendError(t *testing.T) {
	env := newTestEnv(t)
	v := &fakeVerifier{err: errors.New("connection refused")}
	h := NewPaymentHandler(env.site, v, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest("GET", "/partials/payment/verify?transaction_id=TX1", nil))

	if !strings.Contains(rec.Body.String(), "could not verify") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("HX-Trigger") != "" {
		t.Error("errors should not toast")
	}
}

func TestPaymentVerifyAbandoned(t *testing.T) {
	env := newTestEnv(t)
	v := &fakeVerifier{resp: verifiedResponse(false)}
	local := newFakeLocal()
	h := NewPaymentHandler(env.site, v, local, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("GET", "/partials/payment/verify?invoice_id=INV1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if rec.Body.Len() != 0 {
		t.Errorf("abandoned verify rendered %q", rec.Body.String())
	}
	select {
	case <-local.called:
		t.Error("abandoned verify sent a notification")
	default:
	}
}

func TestPaymentSuccessPage(t *testing.T) {
	env := newTestEnv(t)
	h := NewPaymentHandler(env.site, &fakeVerifier{}, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.SuccessPage(rec, httptest.NewRequest("GET", "/payment/success?invoiceId=INV1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/partials/payment/verify?invoice_id=INV1") {
		t.Errorf("verify link missing: %s", rec.Body.String())
	}
}

type fakeCheckoutGateway struct {
	req payment.CheckoutRequest
	err error
}

func (g *fakeCheckoutGateway) Name() string { return "fake" }

func (g *fakeCheckoutGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Checkout{URL: "https://pay.example/checkout/abc", Reference: "abc"}, nil
}

func (g *fakeCheckoutGateway) Verify(context.Context, string, string) (*payment.GatewayPayment, error) {
	return nil, payment.ErrNotFound
}

type checkoutRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *checkoutRecorder) NotifyAdminsOfCheckout(e notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course, _ := env.courses.Create(ctx, "go", "Go Basics", "", 150000)
	user, _ := env.users.Create(ctx, "", "s@example.com", "Sam", model.RoleStudent)

	gw := &fakeCheckoutGateway{}
	notes := &checkoutRecorder{}
	h := NewCheckoutHandler(env.courses, env.users, gw, nil, notes, "https://academy.example", "bdt", discardLogger())

	req := withUser(httptest.NewRequest("POST", "/api/checkout", strings.NewReader(`{"courseIds":[`+strconv.FormatInt(course.ID, 10)+`]}`)), user.ID, model.RoleStudent)
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	json.NewDecoder(rec.Body).Decode(&out)
	if out["url"] != "https://pay.example/checkout/abc" {
		t.Errorf("url = %q", out["url"])
	}
	if gw.req.SuccessURL != "https://academy.example/payment/success" || gw.req.Total() != 150000 {
		t.Errorf("checkout request = %+v", gw.req)
	}
	if len(notes.events) != 1 || notes.events[0].Reference != "abc" || notes.events[0].Amount != 1500 {
		t.Errorf("admin events = %+v", notes.events)
	}
}

func TestCheckoutErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course, _ := env.courses.Create(ctx, "go", "Go Basics", "", 1000)
	user, _ := env.users.Create(ctx, "", "s@example.com", "Sam", model.RoleStudent)

	tests := []struct {
		name string
		body string
		gw   *fakeCheckoutGateway
		want int
	}{
		{"bad json", `{`, &fakeCheckoutGateway{}, http.StatusBadRequest},
		{"no courses", `{"courseIds":[]}`, &fakeCheckoutGateway{}, http.StatusBadRequest},
		{"unknown course", `{"courseIds":[999]}`, &fakeCheckoutGateway{}, http.StatusNotFound},
		{"gateway down", `{"courseIds":[` + strconv.FormatInt(course.ID, 10) + `]}`, &fakeCheckoutGateway{err: errors.New("503")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCheckoutHandler(env.courses, env.users, tt.gw, nil, nil, "", "bdt", discardLogger())
			rec := httptest.NewRecorder()
			h.Checkout(rec, withUser(httptest.NewRequest("POST", "/api/checkout", strings.NewReader(tt.body)), user.ID, model.RoleStudent))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

type fakeEnroller struct {
	resp *payment.VerifyResponse
	err  error
}

func (e fakeEnroller) Process(context.Context, enrollment.Request) (*payment.VerifyResponse, error) {
	return e.resp, e.err
}

func TestProcessEnrollmentStatus(t *testing.T) {
	tests := []struct {
		name string
		enr  fakeEnroller
		want int
	}{
		{"ok", fakeEnroller{resp: verifiedResponse(false)}, http.StatusOK},
		{"no identifier", fakeEnroller{err: enrollment.ErrNoPayment}, http.StatusBadRequest},
		{"forbidden", fakeEnroller{err: enrollment.ErrForbidden}, http.StatusForbidden},
		{"gateway", fakeEnroller{err: errors.New("boom")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCheckoutHandler(nil, nil, &fakeCheckoutGateway{}, tt.enr, nil, "", "bdt", discardLogger())
			rec := httptest.NewRecorder()
			h.ProcessEnrollment(rec, httptest.NewRequest("POST", "/api/process-enrollment", strings.NewReader(`{"invoiceId":"INV1"}`)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
