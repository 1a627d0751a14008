// Package payment talks to payment gateways and decides what the payment
// confirmation page shows after a gateway redirects the buyer back.
package payment

import (
	"context"
	"errors"

	"github.com/dukerupert/academy/internal/model"
)

type State string

const (
	StateVerifying State = "verifying"
	StateError     State = "error"
	StateSuccess   State = "success"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateError || s == StateSuccess
}

const (
	msgNoPayment    = "No payment information was found in the return link."
	msgNotCompleted = "Your payment was not completed."
	msgUnreachable  = "We could not verify your payment right now. If you were charged, contact support with your invoice ID."
	msgVerifyFailed = "Payment verification failed."
	msgVerified     = "Your payment was verified."
)

// Verifier confirms a payment with the backend authority.
type Verifier interface {
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
}

type Confirmation struct {
	State   State
	Message string
	Record  *model.PaymentRecord
	// FirstTime is false when the backend had already processed this
	// payment, so the page must not celebrate it again.
	FirstTime bool
	// Err is the underlying failure, for logging only.
	Err error
}

// Confirm moves a confirmation from verifying to error or success. The
// verifier is not called when the redirect lacks an identifier or reports
// a non-completed status.
func Confirm(ctx context.Context, v Verifier, r Redirect, userID string) Confirmation {
	if !r.HasIdentifier() {
		return Confirmation{State: StateError, Message: msgNoPayment}
	}
	if r.Failed() {
		return Confirmation{State: StateError, Message: msgNotCompleted}
	}

	resp, err := v.VerifyPayment(ctx, VerifyRequest{
		InvoiceID:     r.InvoiceID,
		TransactionID: r.TransactionID,
		UserID:        userID,
	})
	if err != nil {
		return Confirmation{State: StateError, Message: msgUnreachable, Err: err}
	}
	if resp == nil || !resp.Success || !resp.Verified {
		msg := msgVerifyFailed
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		return Confirmation{State: StateError, Message: msg, Err: errors.New(msg)}
	}

	return Confirmation{
		State:     StateSuccess,
		Message:   msgVerified,
		Record:    resp.Record(),
		FirstTime: !resp.AlreadyProcessed,
	}
}
