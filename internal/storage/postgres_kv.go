package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresKV stores ledger values in the ledger_entries table
type PostgresKV struct {
	db *PostgresDB
}

var _ KVStore = (*PostgresKV)(nil)

// NewPostgresKV creates a Postgres backed key-value store
func NewPostgresKV(db *PostgresDB) *PostgresKV {
	return &PostgresKV{db: db}
}

// GetValue implements KVStore
func (s *PostgresKV) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT value FROM ledger_entries WHERE key = $1`

	var value []byte
	err := s.db.Pool().QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return value, true, nil
}

// SetValue implements KVStore with a single upsert statement
func (s *PostgresKV) SetValue(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO ledger_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Pool().Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}

	return nil
}
