package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the PostgreSQL implementation of Repository.
type PostgresStore struct {
	*PgTxManager
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{PgTxManager: NewTxManager(db), db: db}
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// noRows maps pgx.ErrNoRows to ErrNotFound.
func noRows(err error, kind string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, id)
	}
	return fmt.Errorf("%s %d: %w", kind, id, err)
}

// mustAffect turns a zero-row update or delete into ErrNotFound.
func mustAffect(affected int64, kind string, id int64) error {
	if affected == 0 {
		return notFound(kind, id)
	}
	return nil
}
