package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
)

// checkoutSessions is the part of the Stripe checkout session API used here.
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway uses Stripe Checkout. The checkout session id doubles as
// the invoice id; the payment intent id is the transaction id.
type StripeGateway struct {
	sessions checkoutSessions
	currency string
	logger   *slog.Logger
}

func NewStripeGateway(secretKey, currency string, logger *slog.Logger) *StripeGateway {
	return &StripeGateway{
		sessions: &checksession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		currency: currency,
		logger:   logger,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(stripeSuccessURL(req.SuccessURL)),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		Metadata: map[string]string{
			"user_id":    req.UserID,
			"course_ids": joinIDs(req.CourseIDs()),
		},
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for _, c := range req.Courses {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(c.Price),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(c.Title),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}

	sess, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Checkout{URL: sess.URL, Reference: sess.ID}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, invoiceID, transactionID string) (*GatewayPayment, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("stripe verify: checkout session id required: %w", ErrNotFound)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := g.sessions.Get(invoiceID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	p := &GatewayPayment{
		InvoiceID: sess.ID,
		Status:    string(sess.PaymentStatus),
		Completed: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
		UserID:    sess.Metadata["user_id"],
		CourseIDs: splitIDs(sess.Metadata["course_ids"]),
	}
	if sess.PaymentIntent != nil {
		p.TransactionID = sess.PaymentIntent.ID
	}
	if transactionID != "" && p.TransactionID != "" && transactionID != p.TransactionID {
		g.logger.Warn("stripe transaction id mismatch", "session", sess.ID, "redirect", transactionID, "stripe", p.TransactionID)
		return nil, fmt.Errorf("stripe verify: transaction mismatch: %w", ErrNotFound)
	}
	if sess.CustomerDetails != nil {
		p.Email = sess.CustomerDetails.Email
		p.Name = sess.CustomerDetails.Name
	}
	return p, nil
}

// stripeSuccessURL appends the session id placeholder Stripe fills in.
func stripeSuccessURL(base string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "invoice_id={CHECKOUT_SESSION_ID}"
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
