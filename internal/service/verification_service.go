package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"org-portal/internal/domain"
	"org-portal/internal/email"
	"org-portal/internal/repository"
)

const DefaultPendingLoginTTL = 15 * time.Minute

var (
	ErrAccountInactive      = errors.New("account not activated")
	ErrAccountAlreadyActive = errors.New("account already activated")
)

// SessionIssuer establishes the authenticated session once the second factor passes.
type SessionIssuer interface {
	GeneratePair(ctx context.Context, account domain.Account) (TokenPair, error)
}

// LoginResult is what a completed second factor yields.
type LoginResult struct {
	Account domain.Account `json:"account"`
	Tokens  TokenPair      `json:"tokens"`
}

type VerificationConfig struct {
	CodeTTL         time.Duration
	PendingLoginTTL time.Duration
	// IssueLimiter throttles code generation per account. Nil disables it.
	IssueLimiter OTPRateLimiter
	// AttemptLimiter caps code submissions per account. Nil disables it.
	AttemptLimiter OTPRateLimiter
}

// VerificationService drives the email-confirmation and login second-factor flows.
type VerificationService struct {
	logger     *zap.Logger
	pending    PendingLoginStore
	pendingTTL time.Duration
	now        func() time.Time

	emailFlow *codeFlow[domain.Account]
	loginFlow *codeFlow[LoginResult]
}

func NewVerificationService(
	logger *zap.Logger,
	accounts repository.AccountRepository,
	codes repository.CodeStore,
	sender email.Sender,
	pending PendingLoginStore,
	sessions SessionIssuer,
	cfg VerificationConfig,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PendingLoginTTL <= 0 {
		cfg.PendingLoginTTL = DefaultPendingLoginTTL
	}
	generator := NewCodeGenerator(cfg.CodeTTL)
	verifier := NewCodeVerifier(codes)
	ttlMinutes := int(generator.ttl.Minutes())

	s := &VerificationService{
		logger:     logger,
		pending:    pending,
		pendingTTL: cfg.PendingLoginTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}

	s.emailFlow = &codeFlow[domain.Account]{
		name:           "email_confirmation",
		logger:         logger,
		accounts:       accounts,
		codes:          codes,
		generator:      generator,
		verifier:       verifier,
		sender:         sender,
		issueLimiter:   cfg.IssueLimiter,
		attemptLimiter: cfg.AttemptLimiter,
		message: func(code domain.PendingCode) (string, string) {
			return "Registration confirmation code",
				fmt.Sprintf("Your confirmation code: %s. It is valid for %d minutes.\n", code.Code, ttlMinutes)
		},
		precondition: func(a domain.Account) error {
			if a.Active {
				return ErrAccountAlreadyActive
			}
			return nil
		},
		onSuccess: func(ctx context.Context, a domain.Account) (domain.Account, error) {
			if err := accounts.Activate(ctx, a.ID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Account{}, ErrAccountNotFound
				}
				return domain.Account{}, err
			}
			a.Active = true
			return a, nil
		},
	}

	s.loginFlow = &codeFlow[LoginResult]{
		name:           "login_second_factor",
		logger:         logger,
		accounts:       accounts,
		codes:          codes,
		generator:      generator,
		verifier:       verifier,
		sender:         sender,
		issueLimiter:   cfg.IssueLimiter,
		attemptLimiter: cfg.AttemptLimiter,
		message: func(code domain.PendingCode) (string, string) {
			return "Login confirmation code",
				fmt.Sprintf("Your code: %s\n\nEnter it within %d minutes.\n", code.Code, ttlMinutes)
		},
		precondition: func(a domain.Account) error {
			if !a.Active {
				return ErrAccountInactive
			}
			return nil
		},
		onSuccess: func(ctx context.Context, a domain.Account) (LoginResult, error) {
			if sessions == nil {
				return LoginResult{}, errors.New("session issuer not configured")
			}
			tokens, err := sessions.GeneratePair(ctx, a)
			if err != nil {
				return LoginResult{}, err
			}
			return LoginResult{Account: a, Tokens: tokens}, nil
		},
	}
	return s
}

// SendEmailConfirmation issues and emails a registration code to an inactive account.
func (s *VerificationService) SendEmailConfirmation(ctx context.Context, accountID string) error {
	_, err := s.emailFlow.Issue(ctx, strings.TrimSpace(accountID))
	return err
}

// ConfirmEmail activates the account when the code matches and has not expired.
func (s *VerificationService) ConfirmEmail(ctx context.Context, accountID, code string) (domain.Account, error) {
	return s.emailFlow.Confirm(ctx, strings.TrimSpace(accountID), strings.TrimSpace(code))
}

// StartLogin issues a fresh login code to a password-verified account and records
// the pending login under a new token.
func (s *VerificationService) StartLogin(ctx context.Context, accountID string) (domain.PendingLogin, error) {
	if s.pending == nil {
		return domain.PendingLogin{}, errors.New("pending login store not configured")
	}
	account, err := s.loginFlow.Issue(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return domain.PendingLogin{}, err
	}
	login := domain.PendingLogin{
		Token:     uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: s.now().Add(s.pendingTTL),
	}
	if err := s.pending.Save(ctx, login); err != nil {
		return domain.PendingLogin{}, fmt.Errorf("save pending login: %w", err)
	}
	return login, nil
}

// ConfirmLogin completes the second factor for the login behind loginToken.
func (s *VerificationService) ConfirmLogin(ctx context.Context, loginToken, code string) (LoginResult, error) {
	loginToken = strings.TrimSpace(loginToken)
	if loginToken == "" || s.pending == nil {
		return LoginResult{}, ErrSessionExpired
	}
	accountID, err := s.pending.Resolve(ctx, loginToken)
	if err != nil {
		if errors.Is(err, ErrPendingLoginNotFound) {
			return LoginResult{}, ErrSessionExpired
		}
		return LoginResult{}, err
	}

	result, err := s.loginFlow.Confirm(ctx, accountID, strings.TrimSpace(code))
	switch {
	case err == nil, errors.Is(err, ErrNoCodePending), errors.Is(err, ErrAccountNotFound):
		if delErr := s.pending.Delete(ctx, loginToken); delErr != nil {
			s.logger.Warn("delete pending login failed", zap.Error(delErr))
		}
	}
	return result, err
}
