package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/enrollment"
	"github.com/dukerupert/academy/internal/notify"
	"github.com/dukerupert/academy/internal/payment"
	"github.com/dukerupert/academy/internal/push"
	"github.com/dukerupert/academy/internal/store"
)

const localNotifyTimeout = 15 * time.Second

// LocalNotifier pushes a notification to every device of one user.
type LocalNotifier interface {
	NotifyUser(ctx context.Context, userID, title string, opts push.Options) int
}

type PaymentHandler struct {
	site     *Site
	verifier payment.Verifier
	local    LocalNotifier
	logger   *slog.Logger
}

// NewPaymentHandler creates a PaymentHandler. local may be nil.
func NewPaymentHandler(site *Site, v payment.Verifier, local LocalNotifier, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{site: site, verifier: v, local: local, logger: logger}
}

// SuccessPage handles GET /payment/success. It only renders the verifying
// state; the partial below does the work.
func (h *PaymentHandler) SuccessPage(w http.ResponseWriter, r *http.Request) {
	red := payment.ParseRedirect(r.URL.Query())
	h.site.page(w, r, http.StatusOK, "payment_success.html", "Payment", map[string]any{
		"Query": red.Query().Encode(),
	})
}

// Verify handles GET /partials/payment/verify.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	c := payment.Confirm(ctx, h.verifier, payment.ParseRedirect(r.URL.Query()), userID)

	// The viewer navigated away while we were verifying.
	if ctx.Err() != nil {
		h.logger.Debug("payment verify abandoned", "user", userID)
		return
	}

	if c.Err != nil {
		h.logger.Warn("payment confirmation failed", "user", userID, "error", c.Err)
	}

	if c.State == payment.StateSuccess && c.FirstTime {
		h.celebrate(ctx, userID, c)
		trigger(w, "toast", map[string]string{"kind": "success", "message": "Payment successful! You are now enrolled."})
	}
	h.site.render.partial(w, http.StatusOK, "payment-result", c)
}

func (h *PaymentHandler) celebrate(ctx context.Context, userID string, c payment.Confirmation) {
	if h.local == nil {
		return
	}
	opts := push.Options{
		Body: "Your enrollment is confirmed.",
		URL:  "/courses",
	}
	if c.Record != nil {
		opts.Tag = "payment-" + c.Record.TransactionID
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), localNotifyTimeout)
	go func() {
		defer cancel()
		h.local.NotifyUser(ctx, userID, "Payment successful!", opts)
	}()
}

// Enroller runs /api/process-enrollment.
type Enroller interface {
	Process(ctx context.Context, req enrollment.Request) (*payment.VerifyResponse, error)
}

// CheckoutNotifier is told about every checkout that was started.
type CheckoutNotifier interface {
	NotifyAdminsOfCheckout(e notify.Event)
}

type CheckoutHandler struct {
	courses  *store.CourseStore
	users    *store.UserStore
	gateway  payment.Gateway
	enroller Enroller
	notifier CheckoutNotifier
	baseURL  string
	currency string
	logger   *slog.Logger
}

func NewCheckoutHandler(cs *store.CourseStore, us *store.UserStore, gw payment.Gateway, enroller Enroller,
	notifier CheckoutNotifier, baseURL, currency string, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		courses:  cs,
		users:    us,
		gateway:  gw,
		enroller: enroller,
		notifier: notifier,
		baseURL:  baseURL,
		currency: currency,
		logger:   logger,
	}
}

type checkoutRequest struct {
	CourseIDs []int64 `json:"courseIds"`
}

// Checkout handles POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.CourseIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "courseIds is required"})
		return
	}

	courses, err := h.courses.GetByIDs(r.Context(), req.CourseIDs)
	if err != nil {
		h.logger.Error("load checkout courses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load courses"})
		return
	}
	if len(courses) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "course not found"})
		return
	}

	user, err := h.users.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil || user == nil {
		h.logger.Error("load checkout user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load account"})
		return
	}

	creq := payment.CheckoutRequest{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Courses:    courses,
		Currency:   h.currency,
		SuccessURL: h.baseURL + "/payment/success",
		CancelURL:  h.baseURL + "/courses",
	}
	co, err := h.gateway.CreateCheckout(r.Context(), creq)
	if err != nil {
		h.logger.Error("create checkout", "gateway", h.gateway.Name(), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not start checkout"})
		return
	}

	titles := make([]string, len(courses))
	for i, c := range courses {
		titles[i] = c.Title
	}
	if h.notifier != nil {
		h.notifier.NotifyAdminsOfCheckout(notify.Event{
			Reference: co.Reference,
			UserName:  user.Name,
			UserEmail: user.Email,
			Courses:   titles,
			Amount:    float64(creq.Total()) / 100,
			Currency:  h.currency,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": co.URL})
}

// ProcessEnrollment handles POST /api/process-enrollment
func (h *CheckoutHandler) ProcessEnrollment(w http.ResponseWriter, r *http.Request) {
	var req payment.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	resp, err := h.enroller.Process(r.Context(), enrollment.Request{
		InvoiceID:     req.InvoiceID,
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
	})
	switch {
	case errors.Is(err, enrollment.ErrNoPayment):
		writeJSON(w, http.StatusBadRequest, payment.VerifyResponse{Error: err.Error()})
	case errors.Is(err, enrollment.ErrForbidden):
		writeJSON(w, http.StatusForbidden, payment.VerifyResponse{Error: err.Error()})
	case err != nil:
		h.logger.Error("process enrollment", "error", err)
		writeJSON(w, http.StatusBadGateway, payment.VerifyResponse{Error: "payment verification unavailable"})
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}
