package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/academy/internal/model"
)

type EnrollmentStore struct {
	db *sql.DB
}

func NewEnrollmentStore(db *sql.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

const paymentCols = `id, user_id, invoice_id, transaction_id, amount, gateway, courses, created_at`

func scanPayment(scanner interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var courses string
	err := scanner.Scan(&p.ID, &p.UserID, &p.InvoiceID, &p.TransactionID, &p.Amount, &p.Gateway, &courses, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(courses), &p.Courses); err != nil {
		return nil, fmt.Errorf("decode payment courses: %w", err)
	}
	return &p, nil
}

// FindPayment returns a recorded payment matching either identifier, or nil.
func (s *EnrollmentStore) FindPayment(ctx context.Context, invoiceID, transactionID string) (*model.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentCols+` FROM payments
		 WHERE (invoice_id != '' AND invoice_id = ?) OR (transaction_id != '' AND transaction_id = ?)
		 LIMIT 1`,
		invoiceID, transactionID,
	)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return p, nil
}

// RecordPayment stores a verified payment and enrolls the user in each course.
// Courses the user is already enrolled in are skipped.
func (s *EnrollmentStore) RecordPayment(ctx context.Context, p model.Payment) (*model.Payment, error) {
	if p.Courses == nil {
		p.Courses = []model.CourseRef{}
	}
	courses, err := json.Marshal(p.Courses)
	if err != nil {
		return nil, fmt.Errorf("encode payment courses: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO payments (user_id, invoice_id, transaction_id, amount, gateway, courses) VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.InvoiceID, p.TransactionID, p.Amount, p.Gateway, string(courses),
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	paymentID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, c := range p.Courses {
		if c.ID == 0 {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO enrollments (user_id, course_id, payment_id) VALUES (?, ?, ?)
			 ON CONFLICT(user_id, course_id) DO NOTHING`,
			p.UserID, c.ID, paymentID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert enrollment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}

	out, err := scanPayment(s.db.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = ?`, paymentID))
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return out, nil
}

func (s *EnrollmentStore) IsEnrolled(ctx context.Context, userID string, courseID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND course_id = ?`, userID, courseID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return n > 0, nil
}
