package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"org-portal/internal/domain"
)

// AccountRepository defines persistence for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Activate(ctx context.Context, id string) error
}

// PgAccountRepository implements AccountRepository on pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO accounts (id, email, username, phone_number, password_hash, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Username,
		account.PhoneNumber,
		account.PasswordHash,
		account.Active,
		account.CreatedAt,
	)
	return translateError(err)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const query = `
		SELECT id, email, username, phone_number, password_hash, active, created_at
		FROM accounts
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	const query = `
		SELECT id, email, username, phone_number, password_hash, active, created_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`
	return r.scanOne(ctx, query, email)
}

func (r *PgAccountRepository) Activate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET active = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgAccountRepository) scanOne(ctx context.Context, query string, arg any) (domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.PhoneNumber,
		&a.PasswordHash,
		&a.Active,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.Account{}, translateError(err)
	}
	return a, nil
}
