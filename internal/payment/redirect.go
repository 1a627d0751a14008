package payment

import (
	"net/url"
	"strings"
)

// Redirect holds what a gateway appends to the return URL. Gateways differ
// in naming, so both camelCase and snake_case keys are accepted.
type Redirect struct {
	InvoiceID     string
	TransactionID string
	Status        string
}

func ParseRedirect(q url.Values) Redirect {
	return Redirect{
		InvoiceID:     firstOf(q, "invoiceId", "invoice_id"),
		TransactionID: firstOf(q, "transactionId", "transaction_id"),
		Status:        strings.TrimSpace(q.Get("status")),
	}
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func (r Redirect) HasIdentifier() bool {
	return r.InvoiceID != "" || r.TransactionID != ""
}

// Failed reports an explicit non-completed status. An absent status is
// unknown, not failed.
func (r Redirect) Failed() bool {
	return r.Status != "" && !strings.EqualFold(r.Status, "completed")
}

// Query re-encodes the redirect for the verify partial.
func (r Redirect) Query() url.Values {
	q := url.Values{}
	if r.InvoiceID != "" {
		q.Set("invoice_id", r.InvoiceID)
	}
	if r.TransactionID != "" {
		q.Set("transaction_id", r.TransactionID)
	}
	if r.Status != "" {
		q.Set("status", r.Status)
	}
	return q
}
