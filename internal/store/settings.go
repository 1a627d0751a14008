package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/academy/internal/model"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the document of the given type, or nil if it was never saved.
func (s *SettingsStore) Get(ctx context.Context, t model.SettingsType) (*model.SettingsDocument, error) {
	var doc model.SettingsDocument
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT type, data, created_at, updated_at FROM settings_documents WHERE type = ?`, string(t),
	).Scan(&doc.Type, &data, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings %q: %w", t, err)
	}
	doc.Data = []byte(data)
	return &doc, nil
}

// Put creates the document on first save and replaces its data afterwards.
// The type is the primary key, so concurrent saves never produce two rows.
func (s *SettingsStore) Put(ctx context.Context, t model.SettingsType, data []byte) error {
	if !t.Valid() {
		return fmt.Errorf("put settings: unknown type %q", t)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings_documents (type, data) VALUES (?, ?)
		 ON CONFLICT(type) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		string(t), string(data),
	)
	if err != nil {
		return fmt.Errorf("put settings %q: %w", t, err)
	}
	return nil
}

// PutAll writes several documents in one transaction.
func (s *SettingsStore) PutAll(ctx context.Context, docs map[model.SettingsType][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range model.SettingsTypes {
		data, ok := docs[t]
		if !ok {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings_documents (type, data) VALUES (?, ?)
			 ON CONFLICT(type) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
			string(t), string(data),
		)
		if err != nil {
			return fmt.Errorf("put settings %q: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Count returns how many rows exist for a type; used to check the singleton invariant.
func (s *SettingsStore) Count(ctx context.Context, t model.SettingsType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings_documents WHERE type = ?`, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count settings %q: %w", t, err)
	}
	return n, nil
}
