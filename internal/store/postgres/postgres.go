// Package postgres implements store.Store on PostgreSQL.
//
// Units of work are database transactions. Atomic takes a transaction-scoped
// advisory lock on its lock key before running, so writers sharing a key are
// serialized across processes as well as goroutines. View runs in a
// REPEATABLE READ, READ ONLY transaction and never sees a half-applied import.
//
// Money columns are NUMERIC and cross the wire as text so no value is ever
// rounded through a float.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/pokerledger/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool. The caller keeps ownership of the pool unless it
// calls Close.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Debug("schema ensured")
	return nil
}

// Atomic implements store.Store.
func (s *Store) Atomic(ctx context.Context, lockKey string, fn func(store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer s.rollback(ctx, tx, lockKey)

	if lockKey != "" {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return fmt.Errorf("lock %s: %w", lockKey, err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer s.rollback(ctx, tx, "")

	return fn(&pgTx{tx: tx, readOnly: true})
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// rollback ends tx if it was not committed.
func (s *Store) rollback(ctx context.Context, tx pgx.Tx, lockKey string) {
	err := tx.Rollback(context.WithoutCancel(ctx))
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return
	}
	s.logger.Warn("rollback failed", "lock_key", lockKey, "error", err)
}
