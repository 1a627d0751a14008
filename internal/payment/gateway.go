package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/academy/internal/config"
	"github.com/dukerupert/academy/internal/model"
)

// ErrNotFound is returned when the gateway has no record of the payment.
var ErrNotFound = errors.New("payment not found")

// GatewayPayment is a payment as reported by a gateway.
type GatewayPayment struct {
	InvoiceID     string
	TransactionID string
	Completed     bool
	Status        string
	Amount        int64 // minor currency units
	Currency      string
	Email         string
	Name          string
	UserID        string
	CourseIDs     []int64
}

type CheckoutRequest struct {
	UserID     string
	Email      string
	Name       string
	Courses    []model.Course
	Currency   string
	SuccessURL string
	CancelURL  string
}

func (r CheckoutRequest) Total() int64 {
	var total int64
	for _, c := range r.Courses {
		total += c.Price
	}
	return total
}

func (r CheckoutRequest) CourseIDs() []int64 {
	ids := make([]int64, len(r.Courses))
	for i, c := range r.Courses {
		ids[i] = c.ID
	}
	return ids
}

// Checkout is a created gateway checkout. Reference identifies it to the
// gateway (session or invoice id).
type Checkout struct {
	URL       string
	Reference string
}

type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Verify(ctx context.Context, invoiceID, transactionID string) (*GatewayPayment, error)
}

// NewGateway builds the gateway selected by PAYMENT_GATEWAY.
func NewGateway(cfg config.PaymentConfig, logger *slog.Logger) (Gateway, error) {
	switch cfg.Gateway {
	case "stripe":
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("stripe gateway: STRIPE_SECRET_KEY is required")
		}
		return NewStripeGateway(cfg.StripeSecretKey, cfg.Currency, logger), nil
	case "uddoktapay":
		if cfg.UddoktaPayAPIKey == "" {
			return nil, fmt.Errorf("uddoktapay gateway: UDDOKTAPAY_API_KEY is required")
		}
		return NewUddoktaPayGateway(cfg.UddoktaPayBaseURL, cfg.UddoktaPayAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Gateway)
	}
}
