package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory AccountStore used by service tests. It mirrors
// the real store's contract: ids assigned on create, unique emails.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	seq      int
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*Account)}
}

func (s *memStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return ErrAlreadyExists
		}
	}
	s.seq++
	account.ID = fmt.Sprintf("acc-%d", s.seq)
	account.CreatedAt = time.Now().UTC()
	clone := *account
	s.accounts[account.ID] = &clone
	return nil
}

func (s *memStore) Find(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Email == email {
			clone := *account
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) List(_ context.Context) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Account
	for _, account := range s.accounts {
		clone := *account
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.PasswordHash = passwordHash
	return nil
}

func (s *memStore) UpdateLastLogin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	account.LastLoginAt = &now
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	tokens, err := NewTokenManager("service-test-secret", WithIssuer("foliocms"))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	svc, err := NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestRegisterAssignsUserRole(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "A@X.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	account, err := store.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if account.Role != RoleUser {
		t.Fatalf("expected role user, got %s", account.Role)
	}
	if account.PasswordHash == "secret1" {
		t.Fatal("password stored in plaintext")
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "a@x.com", "secret1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := svc.Register(ctx, "Other", "a@x.com", "different")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	accounts, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected exactly one account, got %d", len(accounts))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct{ name, email, password string }{
		{"", "a@x.com", "secret1"},
		{"Ana", "", "secret1"},
		{"Ana", "not-an-email", "secret1"},
		{"Ana", "a@x.com", ""},
	}
	for _, tc := range cases {
		err := svc.Register(ctx, tc.name, tc.email, tc.password)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Register(%q,%q,%q): expected ErrInvalidInput, got %v", tc.name, tc.email, tc.password, err)
		}
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "a@x.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, unknownErr := svc.Login(ctx, "nobody@x.com", "secret1")
	_, wrongErr := svc.Login(ctx, "a@x.com", "wrong")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginIssuesTokenAndSanitizedView(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "a@x.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token")
	}
	if result.User.Role != RoleUser {
		t.Fatalf("unexpected role: %s", result.User.Role)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if strings.Contains(string(payload), "secret1") || strings.Contains(strings.ToLower(string(payload)), "password") {
		t.Fatalf("login payload leaks credentials: %s", payload)
	}

	account, err := store.Find(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if account.LastLoginAt == nil {
		t.Fatal("expected last login timestamp to be recorded")
	}
}

func TestAuthenticateLoadsAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "a@x.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	principal, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.Account.Email != "a@x.com" {
		t.Fatalf("unexpected account: %+v", principal.Account)
	}
}

func TestAuthenticateRejectsTokenForDeletedAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "a@x.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.DeleteAccount(ctx, result.User.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if _, err := svc.Authenticate(ctx, result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Login(ctx, "a@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected login for deleted account to fail, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "Ana", "a@x.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id := result.User.ID

	if err := svc.ChangePassword(ctx, id, "wrong", "next2"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "secret1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty new password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "secret1", "next2"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.Login(ctx, "a@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to stop working, got %v", err)
	}
	if _, err := svc.Login(ctx, "a@x.com", "next2"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}
