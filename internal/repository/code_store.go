package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"org-portal/internal/domain"
)

// CodeStore owns the pending verification code of each account.
// Every method is a single statement, so a Set never interleaves with a Get
// into a torn code/expiry pair.
type CodeStore interface {
	Set(ctx context.Context, accountID string, code domain.PendingCode) error
	Clear(ctx context.Context, accountID string) error
	// Consume clears the pending code only while it still equals code and
	// reports whether it did. A false result means another request used or
	// replaced the code first.
	Consume(ctx context.Context, accountID, code string) (bool, error)
	Get(ctx context.Context, accountID string) (domain.PendingCode, error)
}

// PgCodeStore keeps the pending code in the pending_code/code_expires_at columns of accounts.
type PgCodeStore struct {
	pool *pgxpool.Pool
}

func NewPgCodeStore(pool *pgxpool.Pool) *PgCodeStore {
	return &PgCodeStore{pool: pool}
}

func (s *PgCodeStore) Set(ctx context.Context, accountID string, code domain.PendingCode) error {
	const query = `
		UPDATE accounts
		SET pending_code = $2, code_expires_at = $3
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, accountID, code.Code, code.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgCodeStore) Clear(ctx context.Context, accountID string) error {
	const query = `
		UPDATE accounts
		SET pending_code = NULL, code_expires_at = NULL
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgCodeStore) Consume(ctx context.Context, accountID, code string) (bool, error) {
	const query = `
		WITH target AS (
			SELECT id FROM accounts WHERE id = $1
		), consumed AS (
			UPDATE accounts
			SET pending_code = NULL, code_expires_at = NULL
			WHERE id = $1 AND pending_code = $2
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM target), EXISTS (SELECT 1 FROM consumed)
	`
	var found, consumed bool
	if err := s.pool.QueryRow(ctx, query, accountID, code).Scan(&found, &consumed); err != nil {
		return false, translateError(err)
	}
	if !found {
		return false, ErrNotFound
	}
	return consumed, nil
}

func (s *PgCodeStore) Get(ctx context.Context, accountID string) (domain.PendingCode, error) {
	const query = `
		SELECT pending_code, code_expires_at
		FROM accounts
		WHERE id = $1
	`
	var (
		code      *string
		expiresAt *time.Time
	)
	if err := s.pool.QueryRow(ctx, query, accountID).Scan(&code, &expiresAt); err != nil {
		return domain.PendingCode{}, translateError(err)
	}
	if code == nil || expiresAt == nil {
		return domain.PendingCode{}, nil
	}
	return domain.PendingCode{Code: *code, ExpiresAt: expiresAt.UTC()}, nil
}
