// internal/session/token_store_postgres.go
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const credentialsTable = "client_credentials"

// PostgresTokenStore keeps the token in a one-row-per-key table.
type PostgresTokenStore struct {
	db    *sqlx.DB
	key   string
	table string
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func NewPostgresTokenStore(db *sqlx.DB, prefix string) *PostgresTokenStore {
	return &PostgresTokenStore{
		db:    db,
		key:   prefix + ":" + TokenKey,
		table: pq.QuoteIdentifier(credentialsTable),
	}
}

// EnsureSchema creates the credentials table if it is missing.
func (s *PostgresTokenStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			key TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.GetContext(ctx, &token, `SELECT token FROM `+s.table+` WHERE key = $1`, s.key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("select token: %w", err)
	}
	return token, nil
}

func (s *PostgresTokenStore) Save(ctx context.Context, token string) error {
	query := `
		INSERT INTO ` + s.table + ` (key, token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET token = EXCLUDED.token, updated_at = now()
	`
	if _, err := s.db.ExecContext(ctx, query, s.key, token); err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, s.key); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
