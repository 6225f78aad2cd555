// Package auth handles account sign-in, sign-up, and session lifecycle
// against a GoTrue-compatible endpoint.
package auth

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

	"github.com/tasklyapp/taskly/internal/cache"
)

// ErrNoSession is returned when an operation needs a stored session and
// none exists.
var ErrNoSession = errors.New("no session stored")

// User identifies an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the token pair returned by sign-in, persisted in the local
// cache between runs.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the access token is past (or within a minute
// of) its expiry.
func (s Session) Expired() bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return time.Now().Add(time.Minute).Unix() >= s.ExpiresAt
}

// Client talks to the auth endpoint and keeps the current session in the
// cache.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *cache.Cache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for auth calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates an auth client for the project at baseURL. Sessions
// are persisted through c.
func NewClient(baseURL, apiKey string, c *cache.Cache, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   c,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// authError is the endpoint's error envelope. Fields vary by endpoint
// version, so all known spellings are tried.
type authError struct {
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e authError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path, bearer string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae authError
		if json.Unmarshal(data, &ae) == nil && ae.text() != "" {
			return fmt.Errorf("auth failed: %s", ae.text())
		}
		return fmt.Errorf("auth failed: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges credentials for a session and persists it.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var sess Session
	err := c.post(ctx, "/auth/v1/token?grant_type=password", "", credentials{email, password}, &sess)
	if err != nil {
		return Session{}, err
	}
	if sess.AccessToken == "" {
		return Session{}, errors.New("auth failed: invalid credentials")
	}
	if err := c.storeSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// signupResponse distinguishes immediate sessions from accounts that
// need email confirmation before first sign-in.
type signupResponse struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`

	// Immediate-session variant inlines the token fields instead.
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// SignUp registers a new account. If the project requires email
// confirmation, needsConfirmation is true and no session is stored.
func (c *Client) SignUp(ctx context.Context, email, password string) (needsConfirmation bool, err error) {
	var resp signupResponse
	if err := c.post(ctx, "/auth/v1/signup", "", credentials{email, password}, &resp); err != nil {
		return false, err
	}
	if resp.User == nil {
		return false, errors.New("auth failed: sign up rejected")
	}

	sess := resp.Session
	if sess == nil && resp.AccessToken != "" {
		sess = &Session{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresAt:    resp.ExpiresAt,
			User:         *resp.User,
		}
	}
	if sess == nil {
		return true, nil
	}
	return false, c.storeSession(ctx, *sess)
}

// SignOut revokes the stored session at the endpoint and clears it
// locally. The local clear happens even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.CurrentSession(ctx)
	if err == nil {
		if err := c.post(ctx, "/auth/v1/logout", sess.AccessToken, nil, nil); err != nil {
			// Local sign-out must not be blocked by a dead endpoint.
			_ = err
		}
	} else if !errors.Is(err, ErrNoSession) {
		return err
	}
	return c.cache.ClearSession(ctx)
}

// Refresh trades the stored refresh token for a new session. The stored
// session is cleared when the endpoint rejects the token.
func (c *Client) Refresh(ctx context.Context) (Session, error) {
	old, err := c.CurrentSession(ctx)
	if err != nil {
		return Session{}, err
	}

	body := map[string]string{"refresh_token": old.RefreshToken}
	var sess Session
	if err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", body, &sess); err != nil {
		_ = c.cache.ClearSession(ctx)
		return Session{}, err
	}
	if sess.AccessToken == "" {
		_ = c.cache.ClearSession(ctx)
		return Session{}, errors.New("auth failed: refresh token rejected")
	}
	if err := c.storeSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Recover asks the endpoint to send a password reset email.
func (c *Client) Recover(ctx context.Context, email string) error {
	return c.post(ctx, "/auth/v1/recover", "", map[string]string{"email": email}, nil)
}

// CurrentSession returns the stored session, or ErrNoSession.
func (c *Client) CurrentSession(ctx context.Context) (Session, error) {
	blob, err := c.cache.Session(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	if len(blob) == 0 {
		return Session{}, ErrNoSession
	}
	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.AccessToken == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (c *Client) storeSession(ctx context.Context, sess Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := c.cache.SetSession(ctx, blob); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}
