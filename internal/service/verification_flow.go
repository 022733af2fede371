package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"org-portal/internal/domain"
	"org-portal/internal/email"
	"org-portal/internal/repository"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDispatchFailed  = errors.New("verification code dispatch failed")
	ErrCodeInvalid     = errors.New("verification code invalid")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrNoCodePending   = errors.New("no verification code pending")
	ErrSessionExpired  = errors.New("login session expired")
	ErrRateLimited     = errors.New("rate limited")
)

// CodeMessage renders the email carrying a freshly issued code.
type CodeMessage func(code domain.PendingCode) (subject, body string)

// codeFlow is the shared AwaitingCode -> Completed machine behind email
// confirmation and the login second factor. The flows differ only in the
// precondition checked before issuing, the message sent and onSuccess.
type codeFlow[T any] struct {
	name           string
	logger         *zap.Logger
	accounts       repository.AccountRepository
	codes          repository.CodeStore
	generator      *CodeGenerator
	verifier       *CodeVerifier
	sender         email.Sender
	message        CodeMessage
	issueLimiter   OTPRateLimiter
	attemptLimiter OTPRateLimiter
	precondition   func(domain.Account) error
	onSuccess      func(ctx context.Context, account domain.Account) (T, error)
}

// Issue generates a code, stores it over any earlier one and emails it.
// The stored code survives a failed dispatch; a resend replaces it.
func (f *codeFlow[T]) Issue(ctx context.Context, accountID string) (domain.Account, error) {
	account, err := f.loadAccount(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if f.precondition != nil {
		if err := f.precondition(account); err != nil {
			return domain.Account{}, err
		}
	}
	if f.issueLimiter != nil && !f.issueLimiter.Allow(ctx, "issue:"+account.ID) {
		return domain.Account{}, ErrRateLimited
	}

	code, err := f.generator.Generate()
	if err != nil {
		return domain.Account{}, fmt.Errorf("generate %s code: %w", f.name, err)
	}
	if err := f.codes.Set(ctx, account.ID, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}

	if f.sender == nil {
		return domain.Account{}, ErrDispatchFailed
	}
	subject, body := f.message(code)
	if err := f.sender.Send(ctx, account.Email, subject, body); err != nil {
		f.logger.Warn("send verification code failed",
			zap.String("flow", f.name),
			zap.String("email", account.Email),
			zap.Error(err),
		)
		return domain.Account{}, ErrDispatchFailed
	}
	return account, nil
}

// Confirm checks the submitted code. Wrong and expired codes leave the pending
// code in place so the user can retry until it lapses. A valid code is consumed
// by a compare-and-clear, so it completes the flow at most once and never wipes
// a code issued after it was read.
func (f *codeFlow[T]) Confirm(ctx context.Context, accountID, code string) (T, error) {
	var zero T
	account, err := f.loadAccount(ctx, accountID)
	if err != nil {
		return zero, err
	}
	if f.attemptLimiter != nil && !f.attemptLimiter.Allow(ctx, "verify:"+account.ID) {
		return zero, ErrRateLimited
	}

	result, err := f.verifier.Verify(ctx, account.ID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zero, ErrAccountNotFound
		}
		return zero, err
	}

	switch result {
	case domain.VerificationValid:
	case domain.VerificationInvalidCode:
		return zero, ErrCodeInvalid
	case domain.VerificationExpired:
		return zero, ErrCodeExpired
	default:
		return zero, ErrNoCodePending
	}

	consumed, err := f.codes.Consume(ctx, account.ID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zero, ErrAccountNotFound
		}
		return zero, err
	}
	if !consumed {
		return zero, ErrNoCodePending
	}
	f.logger.Info("verification completed", zap.String("flow", f.name), zap.String("account_id", account.ID))
	return f.onSuccess(ctx, account)
}

func (f *codeFlow[T]) loadAccount(ctx context.Context, accountID string) (domain.Account, error) {
	account, err := f.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	return account, nil
}
