package domain

import "time"

// PendingLogin links a login token to an account that passed the password check
// and still owes the emailed second-factor code.
type PendingLogin struct {
	Token     string    `json:"login_token"`
	AccountID string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
