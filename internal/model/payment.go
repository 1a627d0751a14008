package model

import "time"

// Payment is a verified gateway payment recorded at enrollment time.
type Payment struct {
	ID            int64       `json:"id"`
	UserID        string      `json:"user_id"`
	InvoiceID     string      `json:"invoice_id"`
	TransactionID string      `json:"transaction_id"`
	Amount        int64       `json:"amount"` // minor currency units
	Gateway       string      `json:"gateway"`
	Courses       []CourseRef `json:"courses"`
	CreatedAt     time.Time   `json:"created_at"`
}

// PaymentRecord is the summary shown on the confirmation page.
type PaymentRecord struct {
	TransactionID string      `json:"transactionId"`
	InvoiceID     string      `json:"invoiceId,omitempty"`
	FinalAmount   float64     `json:"finalAmount"`
	Courses       []CourseRef `json:"courses"`
}

type Enrollment struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  int64     `json:"course_id"`
	PaymentID int64     `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
}
