package payment

import (
	"github.com/dukerupert/academy/internal/model"
)

// VerifyRequest is the body of POST /api/process-enrollment.
type VerifyRequest struct {
	InvoiceID     string `json:"invoiceId"`
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"userId"`
}

// VerifyResponse is the reply of /api/process-enrollment. PaymentRecord is
// the canonical shape; Payment is the older shape, still accepted when
// decoding.
type VerifyResponse struct {
	Success          bool                 `json:"success"`
	Verified         bool                 `json:"verified"`
	AlreadyProcessed bool                 `json:"alreadyProcessed,omitempty"`
	PaymentRecord    *model.PaymentRecord `json:"paymentRecord,omitempty"`
	Payment          *LegacyPayment       `json:"payment,omitempty"`
	Error            string               `json:"error,omitempty"`
}

type LegacyPayment struct {
	TransactionID string  `json:"transaction_id"`
	InvoiceID     string  `json:"invoice_id,omitempty"`
	Amount        float64 `json:"amount"`
	Metadata      struct {
		Courses []model.CourseRef `json:"courses"`
	} `json:"metadata"`
}

// Record returns the payment summary whichever shape the response used, or
// nil when it carries neither.
func (r *VerifyResponse) Record() *model.PaymentRecord {
	if r == nil {
		return nil
	}
	if r.PaymentRecord != nil {
		return r.PaymentRecord
	}
	if r.Payment != nil {
		return &model.PaymentRecord{
			TransactionID: r.Payment.TransactionID,
			InvoiceID:     r.Payment.InvoiceID,
			FinalAmount:   r.Payment.Amount,
			Courses:       r.Payment.Metadata.Courses,
		}
	}
	return nil
}
