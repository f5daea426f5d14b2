package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/unisrv/unisrv-cli/internal/config"
	"github.com/unisrv/unisrv-cli/internal/logging"
)

// Client is the typed HTTP client for the unisrv control plane. All state,
// including the auth session, lives on the client; there are no process-wide
// singletons.
type Client struct {
	cfg     config.Config
	http    *http.Client
	session *AuthSession
}

// New builds a client for the given configuration and session. The session
// may be nil (not logged in); only Login and unauthenticated calls will work.
func New(cfg config.Config, session *AuthSession) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &Client{
		cfg:     cfg,
		http:    rc.StandardClient(),
		session: session,
	}
}

// Config returns the client's configuration.
func (c *Client) Config() config.Config { return c.cfg }

// Session returns the current auth session, or nil when not logged in.
func (c *Client) Session() *AuthSession { return c.session }

// EnsureAuth verifies a usable session exists without performing any network
// call. Commands call this before prompting for work so the user gets a clear
// "please log in" error up front.
func (c *Client) EnsureAuth() error {
	if c.session == nil {
		return ErrNotLoggedIn
	}
	if c.session.Expired() {
		return ErrSessionExpired
	}
	return nil
}

// LoginResponse is the token pair issued by the auth endpoints.
type LoginResponse struct {
	UserID           uuid.UUID `json:"user_id"`
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshSessionID uuid.UUID `json:"refresh_session_id"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Login authenticates with username/password, stores the resulting session in
// the keyring and attaches it to the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL("/auth/login/basic"), nil)
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.SetBasicAuth(username, password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.cfg.APIHost, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "login"); err != nil {
		return err
	}

	var login LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	session := &AuthSession{
		UserID:             login.UserID,
		AccessToken:        login.Token,
		AccessTokenExpiry:  login.ExpiresAt,
		RefreshSessionID:   login.RefreshSessionID,
		RefreshToken:       login.RefreshToken,
		RefreshTokenExpiry: login.RefreshExpiresAt,
	}
	if err := session.Save(); err != nil {
		return err
	}
	c.session = session
	return nil
}

// Logout removes the stored session.
func (c *Client) Logout() error {
	if err := DeleteSession(); err != nil {
		return err
	}
	c.session = nil
	return nil
}

// Token returns a valid access token, refreshing it through the refresh
// session when the access token has expired.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.session == nil {
		return "", ErrNotLoggedIn
	}
	now := time.Now()
	if now.Before(c.session.AccessTokenExpiry) {
		return c.session.AccessToken, nil
	}
	if now.After(c.session.RefreshTokenExpiry) {
		// Nothing left to refresh with; drop the dead session.
		if err := DeleteSession(); err != nil {
			logging.Warn("api", "failed to delete expired session: %v", err)
		}
		c.session = nil
		return "", ErrSessionExpired
	}
	if err := c.refreshSession(ctx); err != nil {
		return "", err
	}
	return c.session.AccessToken, nil
}

func (c *Client) refreshSession(ctx context.Context) error {
	payload, err := json.Marshal(map[string]any{
		"id":    c.session.RefreshSessionID,
		"token": c.session.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL("/auth/refresh"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.session.RefreshToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "refresh session"); err != nil {
		if delErr := DeleteSession(); delErr != nil {
			logging.Warn("api", "failed to delete unrefreshable session: %v", delErr)
		}
		c.session = nil
		return fmt.Errorf("%w (%v)", ErrSessionExpired, err)
	}

	var login LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	c.session.AccessToken = login.Token
	c.session.AccessTokenExpiry = login.ExpiresAt
	c.session.RefreshSessionID = login.RefreshSessionID
	c.session.RefreshToken = login.RefreshToken
	c.session.RefreshTokenExpiry = login.RefreshExpiresAt
	if err := c.session.Save(); err != nil {
		return err
	}
	logging.Debug("api", "auth session refreshed")
	return nil
}

// do performs an authenticated JSON request. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := fmt.Sprintf("%s %s", method, path)

	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL(path), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.cfg.APIHost, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, op); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response for %s: %w", op, err)
		}
	}
	return nil
}
