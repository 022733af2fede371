package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"org-portal/internal/domain"
)

type OrganizationRepository interface {
	Create(ctx context.Context, org domain.Organization) error
	GetByAccountID(ctx context.Context, accountID string) (domain.Organization, error)
	Update(ctx context.Context, org domain.Organization) error
	UpdateBankDetails(ctx context.Context, accountID string, bank domain.BankDetails) error
}

type PgOrganizationRepository struct {
	pool *pgxpool.Pool
}

func NewPgOrganizationRepository(pool *pgxpool.Pool) *PgOrganizationRepository {
	return &PgOrganizationRepository{pool: pool}
}

func (r *PgOrganizationRepository) Create(ctx context.Context, org domain.Organization) error {
	const query = `
		INSERT INTO organizations (
			id, account_id, name, legal_form, inn, kpp, ogrn, address,
			bik, bank_name, correspondent_account, checking_account, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		org.ID,
		org.AccountID,
		org.Name,
		string(org.LegalForm),
		org.INN,
		nullable(org.KPP),
		org.OGRN,
		org.Address,
		nullable(org.Bank.BIK),
		nullable(org.Bank.BankName),
		nullable(org.Bank.CorrespondentAccount),
		nullable(org.Bank.CheckingAccount),
		org.CreatedAt,
		org.UpdatedAt,
	)
	return translateError(err)
}

func (r *PgOrganizationRepository) GetByAccountID(ctx context.Context, accountID string) (domain.Organization, error) {
	const query = `
		SELECT id, account_id, name, legal_form, inn, COALESCE(kpp, ''), ogrn, address,
			COALESCE(bik, ''), COALESCE(bank_name, ''),
			COALESCE(correspondent_account, ''), COALESCE(checking_account, ''),
			created_at, updated_at
		FROM organizations
		WHERE account_id = $1
	`
	var (
		org       domain.Organization
		legalForm string
	)
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&org.ID,
		&org.AccountID,
		&org.Name,
		&legalForm,
		&org.INN,
		&org.KPP,
		&org.OGRN,
		&org.Address,
		&org.Bank.BIK,
		&org.Bank.BankName,
		&org.Bank.CorrespondentAccount,
		&org.Bank.CheckingAccount,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return domain.Organization{}, translateError(err)
	}
	org.LegalForm = domain.LegalForm(legalForm)
	return org, nil
}

func (r *PgOrganizationRepository) Update(ctx context.Context, org domain.Organization) error {
	const query = `
		UPDATE organizations
		SET name = $2, legal_form = $3, inn = $4, kpp = $5, ogrn = $6, address = $7, updated_at = $8
		WHERE account_id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		org.AccountID,
		org.Name,
		string(org.LegalForm),
		org.INN,
		nullable(org.KPP),
		org.OGRN,
		org.Address,
		org.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgOrganizationRepository) UpdateBankDetails(ctx context.Context, accountID string, bank domain.BankDetails) error {
	const query = `
		UPDATE organizations
		SET bik = $2, bank_name = $3, correspondent_account = $4, checking_account = $5, updated_at = NOW()
		WHERE account_id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		accountID,
		nullable(bank.BIK),
		nullable(bank.BankName),
		nullable(bank.CorrespondentAccount),
		nullable(bank.CheckingAccount),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
