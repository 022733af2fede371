package service

import (
	"context"
	"crypto/subtle"
	"time"

	"org-portal/internal/domain"
	"org-portal/internal/repository"
)

// CodeVerifier checks a submitted code against the account's pending one.
// It never mutates the store; clearing a used code is the caller's job.
type CodeVerifier struct {
	codes repository.CodeStore
	now   func() time.Time
}

func NewCodeVerifier(codes repository.CodeStore) *CodeVerifier {
	return &CodeVerifier{
		codes: codes,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Verify reports a wrong code and a correct-but-late code as different results.
// The returned error is non-nil only when the store lookup fails.
func (v *CodeVerifier) Verify(ctx context.Context, accountID, submitted string) (domain.VerificationResult, error) {
	pending, err := v.codes.Get(ctx, accountID)
	if err != nil {
		return domain.VerificationNoCodePending, err
	}
	if pending.IsZero() {
		return domain.VerificationNoCodePending, nil
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(pending.Code)) != 1 {
		return domain.VerificationInvalidCode, nil
	}
	if !v.now().Before(pending.ExpiresAt) {
		return domain.VerificationExpired, nil
	}
	return domain.VerificationValid, nil
}
