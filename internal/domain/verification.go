package domain

import "time"

// PendingCode is the single outstanding verification code of an account.
// Code and ExpiresAt are always set together; the zero value means no code is pending.
type PendingCode struct {
	Code      string
	ExpiresAt time.Time
}

func (p PendingCode) IsZero() bool {
	return p.Code == ""
}

// VerificationResult is the outcome of checking a submitted code against the pending one.
// The zero value is not a valid outcome.
type VerificationResult int

const (
	VerificationValid VerificationResult = iota + 1
	VerificationInvalidCode
	VerificationExpired
	VerificationNoCodePending
)

func (r VerificationResult) String() string {
	switch r {
	case VerificationValid:
		return "valid"
	case VerificationInvalidCode:
		return "invalid_code"
	case VerificationExpired:
		return "expired"
	case VerificationNoCodePending:
		return "no_code_pending"
	default:
		return "unknown"
	}
}
