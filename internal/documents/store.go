// Package documents is the Postgres-backed document store for profiles,
// conversations and messages.
package documents

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	errs "crm-functions/internal/common/errors"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.NewDocumentStoreError("ping", err)
	}
	return nil
}

// withTx runs fn in a transaction and commits when fn returns nil.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDocumentStoreError(op, fmt.Errorf("begin: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDocumentStoreError(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// wrap keeps StandardErrors as they are and turns everything else into DOCUMENT_STORE_ERROR.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if std, ok := err.(*errs.StandardError); ok {
		return std
	}
	return errs.NewDocumentStoreError(op, err)
}

func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
