package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/academy/internal/model"
	"github.com/google/uuid"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var hash sql.NullString
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &hash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String
	return &u, nil
}

const userCols = `id, email, name, role, password_hash, created_at, updated_at`

// Create inserts a user. An empty id gets a random UUID; an empty role becomes student.
func (s *UserStore) Create(ctx context.Context, id, email, name, role string) (*model.User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if role == "" {
		role = model.RoleStudent
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role) VALUES (?, ?, ?, ?)`,
		id, strings.ToLower(strings.TrimSpace(email)), name, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetRole(ctx context.Context, id, role string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, role, id,
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return nil
}

func (s *UserStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id,
	)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}
