package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"org-portal/internal/domain"
	"org-portal/internal/repository"
	"org-portal/internal/service"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	codes    map[string]domain.PendingCode
	setErr   error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts: make(map[string]domain.Account),
		codes:    make(map[string]domain.PendingCode),
	}
}

func (m *mockAccountStore) Create(_ context.Context, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrDuplicate
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domain.Account{}, repository.ErrNotFound
}

func (m *mockAccountStore) Activate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Active = true
	m.accounts[id] = a
	return nil
}

func (m *mockAccountStore) Set(_ context.Context, accountID string, code domain.PendingCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if _, ok := m.accounts[accountID]; !ok {
		return repository.ErrNotFound
	}
	m.codes[accountID] = code
	return nil
}

func (m *mockAccountStore) Clear(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.codes, accountID)
	return nil
}

func (m *mockAccountStore) Consume(_ context.Context, accountID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return false, repository.ErrNotFound
	}
	if m.codes[accountID].Code != code {
		return false, nil
	}
	delete(m.codes, accountID)
	return true, nil
}

func (m *mockAccountStore) Get(_ context.Context, accountID string) (domain.PendingCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return domain.PendingCode{}, repository.ErrNotFound
	}
	return m.codes[accountID], nil
}

type mockEmailSender struct {
	mu       sync.Mutex
	lastTo   string
	lastBody string
	err      error
}

func (m *mockEmailSender) Send(_ context.Context, toEmail, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTo = toEmail
	m.lastBody = body
	return m.err
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (m *mockEmailSender) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code := codePattern.FindString(m.lastBody)
	if code == "" {
		t.Fatalf("no code in mail body %q", m.lastBody)
	}
	return code
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ context.Context, _ string) bool {
	return m.allow
}

type mockOrgRepo struct {
	mu        sync.Mutex
	byAccount map[string]domain.Organization
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{byAccount: make(map[string]domain.Organization)}
}

func (m *mockOrgRepo) Create(_ context.Context, org domain.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAccount[org.AccountID]; ok {
		return repository.ErrDuplicate
	}
	m.byAccount[org.AccountID] = org
	return nil
}

func (m *mockOrgRepo) GetByAccountID(_ context.Context, accountID string) (domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.byAccount[accountID]
	if !ok {
		return domain.Organization{}, repository.ErrNotFound
	}
	return org, nil
}

func (m *mockOrgRepo) Update(_ context.Context, org domain.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAccount[org.AccountID]; !ok {
		return repository.ErrNotFound
	}
	m.byAccount[org.AccountID] = org
	return nil
}

func (m *mockOrgRepo) UpdateBankDetails(_ context.Context, accountID string, bank domain.BankDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.byAccount[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	org.Bank = bank
	m.byAccount[accountID] = org
	return nil
}

// testEnv is the full router over in-memory fakes.
type testEnv struct {
	router   *gin.Engine
	accounts *mockAccountStore
	orgs     *mockOrgRepo
	sender   *mockEmailSender
	jwt      *service.JWTService
}

func newTestEnv(t *testing.T, issueLimiter service.OTPRateLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	accounts := newMockAccountStore()
	orgs := newMockOrgRepo()
	sender := &mockEmailSender{}
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())
	pending := service.NewMemoryPendingLoginStore(ctx, 15*time.Minute)

	verification := service.NewVerificationService(zap.NewNop(), accounts, accounts, sender, pending, jwtSvc, service.VerificationConfig{
		IssueLimiter: issueLimiter,
	})
	accountSvc := service.NewAccountService(zap.NewNop(), accounts, verification, "RU")
	orgSvc := service.NewOrganizationService(zap.NewNop(), orgs)

	router := NewRouter(
		zap.NewNop(),
		NewAccountHandler(zap.NewNop(), accountSvc, verification, jwtSvc),
		NewOrganizationHandler(zap.NewNop(), orgSvc),
		jwtSvc,
	)
	return &testEnv{router: router, accounts: accounts, orgs: orgs, sender: sender, jwt: jwtSvc}
}

func (e *testEnv) addAccount(id string, active bool) domain.Account {
	a := domain.Account{ID: id, Email: id + "@example.com", Active: active, CreatedAt: time.Now().UTC()}
	e.accounts.accounts[id] = a
	return a
}

func (e *testEnv) accessToken(t *testing.T, account domain.Account) string {
	t.Helper()
	pair, err := e.jwt.GeneratePair(context.Background(), account)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	return pair.AccessToken
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	return performAuthRequest(r, method, path, "", body)
}

func performAuthRequest(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}
