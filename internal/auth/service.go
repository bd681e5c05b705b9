package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service orchestrates registration, login, and account maintenance on top
// of an AccountStore and a TokenManager.
type Service struct {
	store  AccountStore
	tokens *TokenManager
}

// NewService constructs the authentication service.
func NewService(store AccountStore, tokens *TokenManager) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: account store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token manager is required")
	}
	return &Service{store: store, tokens: tokens}, nil
}

// LoginResult carries the issued token and the sanitized user view.
type LoginResult struct {
	Token     string `json:"token"`
	User      View   `json:"user"`
	ExpiresAt int64  `json:"expires_at"`
}

// Register creates a new account with role fixed to user. The caller never
// chooses a role; elevation to admin is an out-of-band operation. No token
// is issued: the caller must log in afterwards.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	account := &Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.store.Create(ctx, account); err != nil {
		// The unique email index is the only guard against concurrent
		// duplicate registrations; surface the loser as a conflict.
		return err
	}
	return nil
}

// Login verifies credentials and issues a signed token. Unknown email and
// wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		return LoginResult{}, err
	}
	// Best effort; a failed timestamp write never fails the login.
	_ = s.store.UpdateLastLogin(ctx, account.ID)

	return LoginResult{
		Token:     token,
		User:      account.View(),
		ExpiresAt: expiresAt.Unix(),
	}, nil
}

// Authenticate verifies a bearer token and loads the account it names.
// A token whose account no longer exists is treated as invalid.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	accountID, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	account, err := s.store.Find(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	return Principal{Account: account}, nil
}

// ChangePassword verifies the current password before storing a new hash.
// Outstanding tokens remain valid until their natural expiry.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	account, err := s.store.Find(ctx, accountID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(account.PasswordHash, current); err != nil {
		return ErrWrongPassword
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, accountID, hash)
}

// DeleteAccount removes the caller's own account. Tokens already issued for
// it die at the middleware's account-load step.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	return s.store.Delete(ctx, accountID)
}

// ListAccounts returns sanitized views of every account, newest last.
func (s *Service) ListAccounts(ctx context.Context) ([]View, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, account.View())
	}
	return views, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}
