package service

import (
	"context"
	"strings"
	"sync"

	"org-portal/internal/domain"
	"org-portal/internal/repository"
)

// fakeDB backs both AccountRepository and CodeStore, like the accounts table does.
type fakeDB struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	codes    map[string]domain.PendingCode
	getErr   error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		accounts: make(map[string]domain.Account),
		codes:    make(map[string]domain.PendingCode),
	}
}

func (f *fakeDB) Create(_ context.Context, account domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrDuplicate
		}
	}
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeDB) GetByID(_ context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return domain.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeDB) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domain.Account{}, repository.ErrNotFound
}

func (f *fakeDB) Activate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Active = true
	f.accounts[id] = a
	return nil
}

func (f *fakeDB) Set(_ context.Context, accountID string, code domain.PendingCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[accountID]; !ok {
		return repository.ErrNotFound
	}
	f.codes[accountID] = code
	return nil
}

func (f *fakeDB) Clear(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[accountID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.codes, accountID)
	return nil
}

func (f *fakeDB) Consume(_ context.Context, accountID, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[accountID]; !ok {
		return false, repository.ErrNotFound
	}
	if f.codes[accountID].Code != code {
		return false, nil
	}
	delete(f.codes, accountID)
	return true, nil
}

func (f *fakeDB) Get(_ context.Context, accountID string) (domain.PendingCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.PendingCode{}, f.getErr
	}
	if _, ok := f.accounts[accountID]; !ok {
		return domain.PendingCode{}, repository.ErrNotFound
	}
	return f.codes[accountID], nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type mockEmailSender struct {
	sent []sentMail
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, toEmail, subject, body string) error {
	m.sent = append(m.sent, sentMail{to: toEmail, subject: subject, body: body})
	return m.err
}

func (m *mockEmailSender) last() sentMail {
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type mockLimiter struct {
	allow bool
	keys  []string
}

func (m *mockLimiter) Allow(_ context.Context, key string) bool {
	m.keys = append(m.keys, key)
	return m.allow
}

type mockPendingLoginStore struct {
	items map[string]string
}

func newMockPendingLoginStore() *mockPendingLoginStore {
	return &mockPendingLoginStore{items: make(map[string]string)}
}

func (m *mockPendingLoginStore) Save(_ context.Context, login domain.PendingLogin) error {
	m.items[login.Token] = login.AccountID
	return nil
}

func (m *mockPendingLoginStore) Resolve(_ context.Context, token string) (string, error) {
	id, ok := m.items[token]
	if !ok {
		return "", ErrPendingLoginNotFound
	}
	return id, nil
}

func (m *mockPendingLoginStore) Delete(_ context.Context, token string) error {
	delete(m.items, token)
	return nil
}
