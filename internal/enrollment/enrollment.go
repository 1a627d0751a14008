// Package enrollment turns a gateway-verified payment into course
// enrollments. It is the only place that decides a payment is real.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/email"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/notify"
	"github.com/dukerupert/academy/internal/payment"
	"github.com/dukerupert/academy/internal/store"
	"github.com/dukerupert/academy/internal/websocket"
)

var (
	ErrForbidden = errors.New("cannot process enrollment for another user")
	ErrNoPayment = errors.New("invoice or transaction id required")
)

const (
	msgNotFound     = "Payment not found"
	msgNotCompleted = "Payment not completed"
	msgWrongUser    = "Payment belongs to another account"
	msgNoCourses    = "Payment does not reference any course"
)

type Request struct {
	InvoiceID     string
	TransactionID string
	UserID        string
}

type Notifier interface {
	NotifyAdminsOfEnrollment(e notify.Event)
}

type Broadcaster interface {
	BroadcastAdmins(msg websocket.Message)
}

type Service struct {
	enrollments *store.EnrollmentStore
	courses     *store.CourseStore
	users       *store.UserStore
	gateway     payment.Gateway
	logger      *slog.Logger

	notifier Notifier
	mailer   email.Sender
	hub      Broadcaster
	currency string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithMailer(m email.Sender) Option { return func(s *Service) { s.mailer = m } }

func WithBroadcaster(b Broadcaster) Option { return func(s *Service) { s.hub = b } }

func WithCurrency(c string) Option { return func(s *Service) { s.currency = c } }

func NewService(enrollments *store.EnrollmentStore, courses *store.CourseStore, users *store.UserStore,
	gateway payment.Gateway, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		enrollments: enrollments,
		courses:     courses,
		users:       users,
		gateway:     gateway,
		logger:      logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// VerifyPayment lets the confirmation page call the service in-process.
func (s *Service) VerifyPayment(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResponse, error) {
	return s.Process(ctx, Request{
		InvoiceID:     req.InvoiceID,
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
	})
}

// Process verifies a payment and enrolls its buyer. Replays of an already
// recorded payment succeed with AlreadyProcessed set and have no side
// effects. A payment the gateway does not report as completed yields an
// unsuccessful response, not an error.
func (s *Service) Process(ctx context.Context, req Request) (*payment.VerifyResponse, error) {
	if req.InvoiceID == "" && req.TransactionID == "" {
		return nil, ErrNoPayment
	}

	isAdmin := false
	if caller, ok := auth.FromContext(ctx); ok {
		isAdmin = caller.Role == model.RoleAdmin
		if req.UserID == "" {
			req.UserID = caller.UserID
		}
		if req.UserID != caller.UserID && caller.Role != model.RoleAdmin {
			return nil, ErrForbidden
		}
	}
	if req.UserID == "" {
		return nil, ErrForbidden
	}

	existing, err := s.enrollments.FindPayment(ctx, req.InvoiceID, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UserID != req.UserID && !isAdmin {
			s.logger.Warn("replay for another user's payment", "payment_id", existing.ID, "user", req.UserID)
			return failed(msgWrongUser), nil
		}
		return replay(existing), nil
	}

	gp, err := s.gateway.Verify(ctx, req.InvoiceID, req.TransactionID)
	if errors.Is(err, payment.ErrNotFound) {
		return failed(msgNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("verify with %s: %w", s.gateway.Name(), err)
	}
	if !gp.Completed {
		s.logger.Info("payment not completed", "invoice", gp.InvoiceID, "status", gp.Status)
		return failed(msgNotCompleted), nil
	}
	if gp.UserID != "" && gp.UserID != req.UserID {
		s.logger.Warn("payment user mismatch", "invoice", gp.InvoiceID, "payment_user", gp.UserID, "user", req.UserID)
		return failed(msgWrongUser), nil
	}

	courses, err := s.courses.GetByIDs(ctx, gp.CourseIDs)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return failed(msgNoCourses), nil
	}

	refs := make([]model.CourseRef, len(courses))
	for i, c := range courses {
		refs[i] = model.CourseRef{ID: c.ID, Title: c.Title}
	}

	p, err := s.enrollments.RecordPayment(ctx, model.Payment{
		UserID:        req.UserID,
		InvoiceID:     firstNonEmpty(gp.InvoiceID, req.InvoiceID),
		TransactionID: firstNonEmpty(gp.TransactionID, req.TransactionID),
		Amount:        gp.Amount,
		Gateway:       s.gateway.Name(),
		Courses:       refs,
	})
	if err != nil {
		// A concurrent request may have recorded it first.
		if again, ferr := s.enrollments.FindPayment(ctx, req.InvoiceID, req.TransactionID); ferr == nil && again != nil {
			return replay(again), nil
		}
		return nil, err
	}

	s.logger.Info("enrollment recorded", "payment_id", p.ID, "user", p.UserID, "courses", len(refs))
	s.announce(ctx, p, gp)

	return &payment.VerifyResponse{
		Success:       true,
		Verified:      true,
		PaymentRecord: record(p),
	}, nil
}

// announce runs the best-effort side effects of a new enrollment.
func (s *Service) announce(ctx context.Context, p *model.Payment, gp *payment.GatewayPayment) {
	name, addr := gp.Name, gp.Email
	if u, err := s.users.GetByID(ctx, p.UserID); err != nil {
		s.logger.Warn("load enrollment user", "user", p.UserID, "error", err)
	} else if u != nil {
		name = firstNonEmpty(u.Name, name)
		addr = firstNonEmpty(u.Email, addr)
	}

	titles := make([]string, len(p.Courses))
	for i, c := range p.Courses {
		titles[i] = c.Title
	}

	if s.notifier != nil {
		s.notifier.NotifyAdminsOfEnrollment(notify.Event{
			Reference: firstNonEmpty(p.InvoiceID, p.TransactionID),
			UserName:  name,
			UserEmail: addr,
			Courses:   titles,
			Amount:    float64(p.Amount) / 100,
			Currency:  firstNonEmpty(gp.Currency, s.currency),
		})
	}

	if s.mailer != nil && addr != "" {
		body, err := receiptHTML(name, titles, p, firstNonEmpty(gp.Currency, s.currency))
		if err == nil {
			err = s.mailer.Send(ctx, addr, "Your enrollment is confirmed", body)
		}
		if err != nil && !errors.Is(err, email.ErrNotConfigured) {
			s.logger.Warn("send receipt", "to", addr, "error", err)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastAdmins(websocket.NewMessage("enrollment", "created", p.TransactionID, map[string]any{
			"userId":  p.UserID,
			"courses": titles,
		}))
	}
}

func replay(p *model.Payment) *payment.VerifyResponse {
	return &payment.VerifyResponse{
		Success:          true,
		Verified:         true,
		AlreadyProcessed: true,
		PaymentRecord:    record(p),
	}
}

func failed(msg string) *payment.VerifyResponse {
	return &payment.VerifyResponse{Success: false, Verified: false, Error: msg}
}

func record(p *model.Payment) *model.PaymentRecord {
	return &model.PaymentRecord{
		TransactionID: p.TransactionID,
		InvoiceID:     p.InvoiceID,
		FinalAmount:   float64(p.Amount) / 100,
		Courses:       p.Courses,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for your purchase. You are now enrolled in:</p>
<ul>{{range .Courses}}<li>{{.}}</li>{{end}}</ul>
<p>Amount paid: {{printf "%.2f" .Amount}} {{.Currency}}<br>Transaction: {{.TransactionID}}</p>`))

func receiptHTML(name string, courses []string, p *model.Payment, currency string) (string, error) {
	var b strings.Builder
	err := receiptTmpl.Execute(&b, map[string]any{
		"Name":          firstNonEmpty(name, "there"),
		"Courses":       courses,
		"Amount":        float64(p.Amount) / 100,
		"Currency":      strings.ToUpper(currency),
		"TransactionID": p.TransactionID,
	})
	if err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return b.String(), nil
}
