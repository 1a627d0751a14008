package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/academy/internal/model"
)

type AdminTokenStore struct {
	db *sql.DB
}

func NewAdminTokenStore(db *sql.DB) *AdminTokenStore {
	return &AdminTokenStore{db: db}
}

// Upsert stores the token for an admin, overwriting any previous one.
func (s *AdminTokenStore) Upsert(ctx context.Context, userID, token string) (*model.AdminToken, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_tokens (user_id, token, role, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET token = excluded.token, role = excluded.role, updated_at = excluded.updated_at`,
		userID, token, model.RoleAdmin, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert admin token: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *AdminTokenStore) Get(ctx context.Context, userID string) (*model.AdminToken, error) {
	var t model.AdminToken
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, token, role, updated_at FROM admin_tokens WHERE user_id = ?`, userID,
	).Scan(&t.UserID, &t.Token, &t.Role, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin token: %w", err)
	}
	return &t, nil
}

func (s *AdminTokenStore) List(ctx context.Context) ([]model.AdminToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, token, role, updated_at FROM admin_tokens WHERE role = ? ORDER BY updated_at DESC`,
		model.RoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("list admin tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.AdminToken
	for rows.Next() {
		var t model.AdminToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Role, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan admin token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteTokens removes rows holding any of the given tokens (e.g. unregistered devices).
func (s *AdminTokenStore) DeleteTokens(ctx context.Context, tokens []string) error {
	for _, tok := range tokens {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM admin_tokens WHERE token = ?`, tok); err != nil {
			return fmt.Errorf("delete admin token: %w", err)
		}
	}
	return nil
}
