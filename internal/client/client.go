package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"foliocms.org/internal/auth"
)

// Client errors. Callers branch on these with errors.Is; the wrapped text
// carries the server's message when one was returned.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("account already exists")
	ErrBadRequest   = errors.New("bad request")
	ErrServer       = errors.New("server error")
)

// Client talks to the folio API. A successful Login persists the session in
// the configured store; any 401 from a gated route clears it, so the stored
// state always tracks what the server last said about the token.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions SessionStore
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, sessions SessionStore, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	if sessions == nil {
		return nil, errors.New("client: session store is required")
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginPayload struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	User      auth.View `json:"user"`
	ExpiresAt int64     `json:"expires_at"`
}

// Register creates an account. The caller logs in separately afterwards.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	resp, raw, err := c.do(ctx, http.MethodPost, "/auth/register", "", body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusCreated {
		return nil
	}
	return apiError(resp.StatusCode, raw)
}

// Login authenticates and persists the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	resp, raw, err := c.do(ctx, http.MethodPost, "/auth/login", "", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, raw)
	}
	var payload loginPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if payload.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", ErrServer)
	}
	sess := &Session{Token: payload.Token, User: payload.User, ExpiresAt: payload.ExpiresAt}
	if err := c.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// Me fetches the authoritative account for the stored token and refreshes
// the cached user snapshot. Without a stored session it fails immediately
// with ErrUnauthorized and no network round trip.
func (c *Client) Me(ctx context.Context) (*auth.View, error) {
	sess, err := c.sessions.Load()
	if err != nil {
		return nil, ErrUnauthorized
	}
	resp, raw, err := c.do(ctx, http.MethodGet, "/user/me", sess.Token, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.gatedError(resp.StatusCode, raw)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode me response: %w", err)
	}
	var view auth.View
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		return nil, fmt.Errorf("decode me response: %w", err)
	}
	sess.User = view
	_ = c.sessions.Save(sess)
	return &view, nil
}

// Logout notifies the server, then forgets the session locally. The local
// clear happens even when the server call fails: discarding the token is
// the part that actually logs the client out.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.sessions.Load()
	if err != nil {
		return nil
	}
	_, _, reqErr := c.do(ctx, http.MethodPost, "/auth/logout", sess.Token, nil)
	if err := c.sessions.Clear(); err != nil {
		return err
	}
	return reqErr
}

// ChangePassword rotates the stored account's password. The current session
// token keeps working until it expires.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	sess, err := c.sessions.Load()
	if err != nil {
		return ErrUnauthorized
	}
	body := map[string]string{"current_password": current, "new_password": next}
	resp, raw, err := c.do(ctx, http.MethodPut, "/user/change-password", sess.Token, body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return c.gatedError(resp.StatusCode, raw)
	}
	return nil
}

// DeleteAccount removes the account and the local session.
func (c *Client) DeleteAccount(ctx context.Context) error {
	sess, err := c.sessions.Load()
	if err != nil {
		return ErrUnauthorized
	}
	resp, raw, err := c.do(ctx, http.MethodDelete, "/user/account", sess.Token, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return c.gatedError(resp.StatusCode, raw)
	}
	return c.sessions.Clear()
}

// Accounts lists every account; the server accepts it from admins only.
func (c *Client) Accounts(ctx context.Context) ([]auth.View, error) {
	sess, err := c.sessions.Load()
	if err != nil {
		return nil, ErrUnauthorized
	}
	resp, raw, err := c.do(ctx, http.MethodGet, "/admin/accounts", sess.Token, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.gatedError(resp.StatusCode, raw)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode accounts response: %w", err)
	}
	var views []auth.View
	if err := json.Unmarshal(envelope.Data, &views); err != nil {
		return nil, fmt.Errorf("decode accounts response: %w", err)
	}
	return views, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, raw, nil
}

// gatedError maps a failure on an authenticated route. A 401 means the
// stored token is no longer honored, so the session is dropped.
func (c *Client) gatedError(status int, raw []byte) error {
	if status == http.StatusUnauthorized {
		_ = c.sessions.Clear()
	}
	return apiError(status, raw)
}

func apiError(status int, raw []byte) error {
	var envelope apiEnvelope
	_ = json.Unmarshal(raw, &envelope)
	msg := envelope.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	var base error
	switch {
	case status == http.StatusUnauthorized:
		base = ErrUnauthorized
	case status == http.StatusForbidden:
		base = ErrForbidden
	case status == http.StatusBadRequest && strings.Contains(msg, "already exists"):
		base = ErrConflict
	case status >= 400 && status < 500:
		base = ErrBadRequest
	default:
		base = ErrServer
	}
	return fmt.Errorf("%w: %s", base, msg)
}
