package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const uddoktaPayKeyHeader = "RT-UDDOKTAPAY-API-KEY"

// UddoktaPayGateway talks to the UddoktaPay checkout API. Amounts travel
// in whole currency units.
type UddoktaPayGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewUddoktaPayGateway(baseURL, apiKey string) *UddoktaPayGateway {
	return &UddoktaPayGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (g *UddoktaPayGateway) Name() string { return "uddoktapay" }

type uddoktaMetadata struct {
	UserID    string  `json:"user_id"`
	CourseIDs []int64 `json:"course_ids"`
}

type uddoktaCheckoutRequest struct {
	FullName    string          `json:"full_name"`
	Email       string          `json:"email"`
	Amount      string          `json:"amount"`
	Metadata    uddoktaMetadata `json:"metadata"`
	RedirectURL string          `json:"redirect_url"`
	CancelURL   string          `json:"cancel_url"`
	ReturnType  string          `json:"return_type"`
}

type uddoktaCheckoutResponse struct {
	Status     bool   `json:"status"`
	Message    string `json:"message"`
	PaymentURL string `json:"payment_url"`
}

type uddoktaVerifyResponse struct {
	FullName      string          `json:"full_name"`
	Email         string          `json:"email"`
	Amount        amount          `json:"amount"`
	InvoiceID     string          `json:"invoice_id"`
	TransactionID string          `json:"transaction_id"`
	Metadata      uddoktaMetadata `json:"metadata"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
}

// amount accepts both "100.00" and 100 from the API.
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", s, err)
	}
	*a = amount(f)
	return nil
}

func (g *UddoktaPayGateway) post(ctx context.Context, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(uddoktaPayKeyHeader, g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

func (g *UddoktaPayGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	body := uddoktaCheckoutRequest{
		FullName:    req.Name,
		Email:       req.Email,
		Amount:      strconv.FormatFloat(float64(req.Total())/100, 'f', 2, 64),
		Metadata:    uddoktaMetadata{UserID: req.UserID, CourseIDs: req.CourseIDs()},
		RedirectURL: req.SuccessURL,
		CancelURL:   req.CancelURL,
		ReturnType:  "GET",
	}
	if body.FullName == "" {
		body.FullName = req.Email
	}

	var out uddoktaCheckoutResponse
	status, err := g.post(ctx, "/api/checkout-v2", body, &out)
	if err != nil {
		return nil, err
	}
	if status >= 400 || !out.Status || out.PaymentURL == "" {
		return nil, fmt.Errorf("uddoktapay checkout failed: status %d: %s", status, out.Message)
	}
	ref := ""
	if i := strings.LastIndex(out.PaymentURL, "/"); i >= 0 {
		ref = out.PaymentURL[i+1:]
	}
	return &Checkout{URL: out.PaymentURL, Reference: ref}, nil
}

func (g *UddoktaPayGateway) Verify(ctx context.Context, invoiceID, transactionID string) (*GatewayPayment, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("uddoktapay verify: invoice id required: %w", ErrNotFound)
	}

	var out uddoktaVerifyResponse
	status, err := g.post(ctx, "/api/verify-payment", map[string]string{"invoice_id": invoiceID}, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || (status < 400 && out.InvoiceID == "") {
		return nil, ErrNotFound
	}
	if status >= 400 {
		return nil, fmt.Errorf("uddoktapay verify failed: status %d: %s", status, out.Message)
	}
	if transactionID != "" && out.TransactionID != "" && transactionID != out.TransactionID {
		return nil, fmt.Errorf("uddoktapay verify: transaction mismatch: %w", ErrNotFound)
	}

	return &GatewayPayment{
		InvoiceID:     out.InvoiceID,
		TransactionID: out.TransactionID,
		Status:        out.Status,
		Completed:     strings.EqualFold(out.Status, "COMPLETED"),
		Amount:        int64(math.Round(float64(out.Amount) * 100)),
		Email:         out.Email,
		Name:          out.FullName,
		UserID:        out.Metadata.UserID,
		CourseIDs:     out.Metadata.CourseIDs,
	}, nil
}
