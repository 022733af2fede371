package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"org-portal/internal/domain"
	"org-portal/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordRequired   = errors.New("password required")
	ErrEmailTaken         = errors.New("email already registered")
)

// AccountService owns registration, credential checks and the entry points of
// both verification flows.
type AccountService struct {
	logger        *zap.Logger
	accounts      repository.AccountRepository
	verification  *VerificationService
	validate      *validator.Validate
	defaultRegion string
}

func NewAccountService(logger *zap.Logger, accounts repository.AccountRepository, verification *VerificationService, defaultRegion string) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultRegion == "" {
		defaultRegion = "RU"
	}
	return &AccountService{
		logger:        logger,
		accounts:      accounts,
		verification:  verification,
		validate:      validator.New(),
		defaultRegion: strings.ToUpper(defaultRegion),
	}
}

type RegisterInput struct {
	Email           string
	Username        string
	PhoneNumber     string
	Password        string
	PasswordConfirm string
}

// Register creates an inactive account and emails its confirmation code.
// When only the dispatch fails the account is returned with ErrDispatchFailed
// so the caller can offer a resend.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	email := normalizeEmail(input.Email)
	if s.validate.Var(email, "required,email") != nil {
		return domain.Account{}, ErrInvalidEmail
	}
	phone, err := s.normalizePhone(input.PhoneNumber)
	if err != nil {
		return domain.Account{}, err
	}
	if input.Password == "" {
		return domain.Account{}, ErrPasswordRequired
	}
	if input.Password != input.PasswordConfirm {
		return domain.Account{}, ErrPasswordMismatch
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return domain.Account{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, err
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     strings.TrimSpace(input.Username),
		PhoneNumber:  phone,
		PasswordHash: string(hash),
		Active:       false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, err
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID))

	if err := s.verification.SendEmailConfirmation(ctx, account.ID); err != nil {
		return account, err
	}
	return account, nil
}

// ResendConfirmation replaces the pending code of an inactive account with a new one.
func (s *AccountService) ResendConfirmation(ctx context.Context, accountID string) error {
	return s.verification.SendEmailConfirmation(ctx, accountID)
}

// Authenticate checks the password first, so an inactive account is only
// reported to someone who knows it.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	if account.PasswordHash == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Account{}, ErrInvalidCredentials
	}
	if !account.Active {
		return domain.Account{}, ErrAccountInactive
	}
	return account, nil
}

// Login verifies the password and starts the second factor.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.PendingLogin, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return domain.PendingLogin{}, err
	}
	return s.verification.StartLogin(ctx, account.ID)
}

// RequestPasswordReset only acknowledges the request for active accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if !account.Active {
		return ErrAccountInactive
	}
	s.logger.Info("password reset requested", zap.String("account_id", account.ID))
	return nil
}

func (s *AccountService) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, s.defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
