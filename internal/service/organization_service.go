package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"org-portal/internal/domain"
	"org-portal/internal/repository"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationExists   = errors.New("organization already exists")
)

// ValidationError carries the failed rule per input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type OrganizationInput struct {
	Name      string `json:"name" validate:"required,max=200"`
	LegalForm string `json:"legal_form" validate:"required,oneof=ooo ip"`
	INN       string `json:"inn" validate:"required,number,len=10|len=12"`
	KPP       string `json:"kpp" validate:"omitempty,number,len=9"`
	OGRN      string `json:"ogrn" validate:"required,number,len=13|len=15"`
	Address   string `json:"address" validate:"required"`
}

type BankDetailsInput struct {
	BIK                  string `json:"bik" validate:"omitempty,number,len=9"`
	BankName             string `json:"bank_name" validate:"omitempty,max=100"`
	CorrespondentAccount string `json:"correspondent_account" validate:"omitempty,number,len=20"`
	CheckingAccount      string `json:"checking_account" validate:"omitempty,number,len=20"`
}

// OrganizationService manages the organization profile of an authenticated account.
type OrganizationService struct {
	logger   *zap.Logger
	orgs     repository.OrganizationRepository
	validate *validator.Validate
}

func NewOrganizationService(logger *zap.Logger, orgs repository.OrganizationRepository) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &OrganizationService{
		logger:   logger,
		orgs:     orgs,
		validate: v,
	}
}

// HasProfile reports whether the account already filled in its organization data.
func (s *OrganizationService) HasProfile(ctx context.Context, accountID string) (bool, error) {
	_, err := s.orgs.GetByAccountID(ctx, accountID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *OrganizationService) Get(ctx context.Context, accountID string) (domain.Organization, error) {
	org, err := s.orgs.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Organization{}, ErrOrganizationNotFound
		}
		return domain.Organization{}, err
	}
	return org, nil
}

func (s *OrganizationService) Create(ctx context.Context, accountID string, input OrganizationInput) (domain.Organization, error) {
	input = trimOrganizationInput(input)
	if err := s.check(input); err != nil {
		return domain.Organization{}, err
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:        uuid.NewString(),
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyOrganizationInput(&org, input)

	if err := s.orgs.Create(ctx, org); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Organization{}, ErrOrganizationExists
		}
		return domain.Organization{}, err
	}
	s.logger.Info("organization created", zap.String("account_id", accountID), zap.String("organization_id", org.ID))
	return org, nil
}

func (s *OrganizationService) Update(ctx context.Context, accountID string, input OrganizationInput) (domain.Organization, error) {
	input = trimOrganizationInput(input)
	if err := s.check(input); err != nil {
		return domain.Organization{}, err
	}
	org, err := s.Get(ctx, accountID)
	if err != nil {
		return domain.Organization{}, err
	}
	applyOrganizationInput(&org, input)
	org.UpdatedAt = time.Now().UTC()

	if err := s.orgs.Update(ctx, org); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Organization{}, ErrOrganizationNotFound
		}
		return domain.Organization{}, err
	}
	return org, nil
}

func (s *OrganizationService) UpdateBankDetails(ctx context.Context, accountID string, input BankDetailsInput) (domain.BankDetails, error) {
	bank := domain.BankDetails{
		BIK:                  strings.TrimSpace(input.BIK),
		BankName:             strings.TrimSpace(input.BankName),
		CorrespondentAccount: strings.TrimSpace(input.CorrespondentAccount),
		CheckingAccount:      strings.TrimSpace(input.CheckingAccount),
	}
	if err := s.check(BankDetailsInput(bank)); err != nil {
		return domain.BankDetails{}, err
	}
	if err := s.orgs.UpdateBankDetails(ctx, accountID, bank); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.BankDetails{}, ErrOrganizationNotFound
		}
		return domain.BankDetails{}, err
	}
	return bank, nil
}

func (s *OrganizationService) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

func trimOrganizationInput(in OrganizationInput) OrganizationInput {
	return OrganizationInput{
		Name:      strings.TrimSpace(in.Name),
		LegalForm: strings.ToLower(strings.TrimSpace(in.LegalForm)),
		INN:       strings.TrimSpace(in.INN),
		KPP:       strings.TrimSpace(in.KPP),
		OGRN:      strings.TrimSpace(in.OGRN),
		Address:   strings.TrimSpace(in.Address),
	}
}

func applyOrganizationInput(org *domain.Organization, in OrganizationInput) {
	org.Name = in.Name
	org.LegalForm = domain.LegalForm(in.LegalForm)
	org.INN = in.INN
	org.KPP = in.KPP
	org.OGRN = in.OGRN
	org.Address = in.Address
}
