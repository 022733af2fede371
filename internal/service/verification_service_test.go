package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"org-portal/internal/domain"
)

var mailCodePattern = regexp.MustCompile(`\b\d{6}\b`)

func codeFromMail(t *testing.T, m sentMail) string {
	t.Helper()
	code := mailCodePattern.FindString(m.body)
	require.NotEmpty(t, code, "no code in mail body %q", m.body)
	return code
}

type verificationFixture struct {
	svc     *VerificationService
	db      *fakeDB
	sender  *mockEmailSender
	pending *mockPendingLoginStore
	now     *time.Time
}

func newVerificationFixture(t *testing.T, cfg VerificationConfig) *verificationFixture {
	t.Helper()
	db := newFakeDB()
	sender := &mockEmailSender{}
	pending := newMockPendingLoginStore()
	jwtSvc := NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, NewMemoryRefreshTokenStore())
	svc := NewVerificationService(zap.NewNop(), db, db, sender, pending, jwtSvc, cfg)

	now := baseTime
	clock := fixedClock(&now)
	svc.now = clock
	svc.emailFlow.generator.now = clock
	svc.emailFlow.verifier.now = clock
	svc.loginFlow.generator.now = clock
	svc.loginFlow.verifier.now = clock

	return &verificationFixture{svc: svc, db: db, sender: sender, pending: pending, now: &now}
}

func (f *verificationFixture) addAccount(id string, active bool) {
	f.db.accounts[id] = domain.Account{ID: id, Email: id + "@example.com", Active: active}
}

func TestConfirmEmailActivatesAccount(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", false)

	require.NoError(t, f.svc.SendEmailConfirmation(ctx, "acc-1"))
	mail := f.sender.last()
	require.Equal(t, "acc-1@example.com", mail.to)
	require.Equal(t, "Registration confirmation code", mail.subject)
	code := codeFromMail(t, mail)

	*f.now = baseTime.Add(2 * time.Minute)
	account, err := f.svc.ConfirmEmail(ctx, "acc-1", code)
	require.NoError(t, err)
	require.True(t, account.Active)

	require.True(t, f.db.accounts["acc-1"].Active)
	pending, err := f.db.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.True(t, pending.IsZero())

	_, err = f.svc.ConfirmEmail(ctx, "acc-1", code)
	require.ErrorIs(t, err, ErrNoCodePending)
}

func TestConfirmEmailFailuresKeepCodePending(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", false)
	require.NoError(t, f.svc.SendEmailConfirmation(ctx, "acc-1"))
	code := codeFromMail(t, f.sender.last())

	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}
	_, err := f.svc.ConfirmEmail(ctx, "acc-1", wrong)
	require.ErrorIs(t, err, ErrCodeInvalid)
	require.False(t, f.db.accounts["acc-1"].Active)

	_, err = f.svc.ConfirmEmail(ctx, "acc-1", code)
	require.NoError(t, err, "retry after a wrong code must still succeed")
}

func TestConfirmEmailExpired(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", false)
	require.NoError(t, f.svc.SendEmailConfirmation(ctx, "acc-1"))
	code := codeFromMail(t, f.sender.last())

	*f.now = baseTime.Add(6 * time.Minute)
	_, err := f.svc.ConfirmEmail(ctx, "acc-1", code)
	require.ErrorIs(t, err, ErrCodeExpired)
	require.False(t, f.db.accounts["acc-1"].Active)

	pending, err := f.db.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, code, pending.Code)
}

func TestConfirmEmailWithoutIssuedCode(t *testing.T) {
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", false)

	_, err := f.svc.ConfirmEmail(context.Background(), "acc-1", "123456")
	require.ErrorIs(t, err, ErrNoCodePending)
}

func TestConfirmEmailUnknownAccount(t *testing.T) {
	f := newVerificationFixture(t, VerificationConfig{})

	_, err := f.svc.ConfirmEmail(context.Background(), "ghost", "123456")
	require.ErrorIs(t, err, ErrAccountNotFound)
	require.ErrorIs(t, f.svc.SendEmailConfirmation(context.Background(), "ghost"), ErrAccountNotFound)
}

func TestSendEmailConfirmationRejectsActiveAccount(t *testing.T) {
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", true)

	err := f.svc.SendEmailConfirmation(context.Background(), "acc-1")
	require.ErrorIs(t, err, ErrAccountAlreadyActive)
	require.Empty(t, f.sender.sent)
}

func TestSendEmailConfirmationDispatchFailure(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", false)
	f.sender.err = errors.New("smtp down")

	err := f.svc.SendEmailConfirmation(ctx, "acc-1")
	require.ErrorIs(t, err, ErrDispatchFailed)

	pending, err := f.db.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.False(t, pending.IsZero(), "stored code survives a failed dispatch")

	f.sender.err = nil
	require.NoError(t, f.svc.SendEmailConfirmation(ctx, "acc-1"))
	resent := codeFromMail(t, f.sender.last())
	pending, err = f.db.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, resent, pending.Code)
}

func TestIssueLimiterThrottlesCodes(t *testing.T) {
	limiter := &mockLimiter{allow: false}
	f := newVerificationFixture(t, VerificationConfig{IssueLimiter: limiter})
	f.addAccount("acc-1", false)

	err := f.svc.SendEmailConfirmation(context.Background(), "acc-1")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, []string{"issue:acc-1"}, limiter.keys)
	require.Empty(t, f.sender.sent)
}

func TestAttemptLimiterCapsSubmissions(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{AttemptLimiter: NewOTPRateLimiter(5*time.Minute, 2)})
	f.addAccount("acc-1", false)
	require.NoError(t, f.svc.SendEmailConfirmation(ctx, "acc-1"))
	code := codeFromMail(t, f.sender.last())

	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}
	_, err := f.svc.ConfirmEmail(ctx, "acc-1", wrong)
	require.ErrorIs(t, err, ErrCodeInvalid)
	_, err = f.svc.ConfirmEmail(ctx, "acc-1", wrong)
	require.ErrorIs(t, err, ErrCodeInvalid)
	_, err = f.svc.ConfirmEmail(ctx, "acc-1", code)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestLoginSecondFactorEstablishesSession(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", true)

	login, err := f.svc.StartLogin(ctx, "acc-1")
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
	require.Equal(t, "acc-1", login.AccountID)
	require.Equal(t, baseTime.Add(DefaultPendingLoginTTL), login.ExpiresAt)
	require.Equal(t, "Login confirmation code", f.sender.last().subject)
	code := codeFromMail(t, f.sender.last())

	result, err := f.svc.ConfirmLogin(ctx, login.Token, code)
	require.NoError(t, err)
	require.Equal(t, "acc-1", result.Account.ID)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotContains(t, f.pending.items, login.Token)

	_, err = f.svc.ConfirmLogin(ctx, login.Token, code)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestLoginCodeReplacesEarlierCode(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", true)

	first, err := f.svc.StartLogin(ctx, "acc-1")
	require.NoError(t, err)
	firstCode := codeFromMail(t, f.sender.last())
	second, err := f.svc.StartLogin(ctx, "acc-1")
	require.NoError(t, err)
	secondCode := codeFromMail(t, f.sender.last())

	if firstCode != secondCode {
		_, err = f.svc.ConfirmLogin(ctx, first.Token, firstCode)
		require.ErrorIs(t, err, ErrCodeInvalid)
	}
	_, err = f.svc.ConfirmLogin(ctx, second.Token, secondCode)
	require.NoError(t, err)
}

func TestConfirmLoginWithoutPendingCode(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", true)
	f.pending.items["tok-1"] = "acc-1"

	_, err := f.svc.ConfirmLogin(ctx, "tok-1", "123456")
	require.ErrorIs(t, err, ErrNoCodePending)
	require.NotContains(t, f.pending.items, "tok-1")
}

func TestConfirmLoginWrongAndExpiredCodesStayPending(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", true)
	login, err := f.svc.StartLogin(ctx, "acc-1")
	require.NoError(t, err)
	code := codeFromMail(t, f.sender.last())

	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}
	_, err = f.svc.ConfirmLogin(ctx, login.Token, wrong)
	require.ErrorIs(t, err, ErrCodeInvalid)
	require.Contains(t, f.pending.items, login.Token)

	*f.now = baseTime.Add(5 * time.Minute)
	_, err = f.svc.ConfirmLogin(ctx, login.Token, code)
	require.ErrorIs(t, err, ErrCodeExpired)
	require.Contains(t, f.pending.items, login.Token)
}

func TestConfirmLoginUnknownToken(t *testing.T) {
	f := newVerificationFixture(t, VerificationConfig{})

	_, err := f.svc.ConfirmLogin(context.Background(), "nope", "123456")
	require.ErrorIs(t, err, ErrSessionExpired)
	_, err = f.svc.ConfirmLogin(context.Background(), "  ", "123456")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestStartLoginRequiresActiveAccount(t *testing.T) {
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", false)

	_, err := f.svc.StartLogin(context.Background(), "acc-1")
	require.ErrorIs(t, err, ErrAccountInactive)
	require.Empty(t, f.pending.items)
}

func TestStartLoginDispatchFailureRecordsNoSession(t *testing.T) {
	f := newVerificationFixture(t, VerificationConfig{})
	f.addAccount("acc-1", true)
	f.sender.err = errors.New("smtp down")

	_, err := f.svc.StartLogin(context.Background(), "acc-1")
	require.ErrorIs(t, err, ErrDispatchFailed)
	require.Empty(t, f.pending.items)
}
