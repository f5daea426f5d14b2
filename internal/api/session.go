package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"

	"github.com/unisrv/unisrv-cli/internal/logging"
)

const (
	keyringService = "unisrv-cli"
	keyringUser    = "auth_session"
)

// RegistryCredential holds stored credentials for one container registry.
type RegistryCredential struct {
	Username    string     `json:"username,omitempty"`
	Password    string     `json:"password,omitempty"`
	Token       string     `json:"token,omitempty"`
	TokenExpiry *time.Time `json:"token_expiry,omitempty"`
}

// AuthSession is the persisted authentication state: the access/refresh token
// pair for the control plane plus any saved container registry credentials.
// It is stored JSON-encoded in the OS keyring.
type AuthSession struct {
	UserID             uuid.UUID                     `json:"user_id"`
	AccessToken        string                        `json:"access_token"`
	AccessTokenExpiry  time.Time                     `json:"access_token_expiry"`
	RefreshSessionID   uuid.UUID                     `json:"refresh_session_id"`
	RefreshToken       string                        `json:"refresh_token"`
	RefreshTokenExpiry time.Time                     `json:"refresh_token_expiry"`
	RegistryAuth       map[string]RegistryCredential `json:"container_registry_auth,omitempty"`
}

// LoadSession reads the session from the keyring. A missing session is not an
// error; it returns (nil, nil).
func LoadSession() (*AuthSession, error) {
	raw, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth session from keyring: %w", err)
	}
	var session AuthSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored auth session: %w", err)
	}
	return &session, nil
}

// Save writes the session to the keyring.
func (s *AuthSession) Save() error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode auth session: %w", err)
	}
	if err := keyring.Set(keyringService, keyringUser, string(raw)); err != nil {
		return fmt.Errorf("failed to save auth session to keyring: %w", err)
	}
	logging.Debug("session", "auth session saved to keyring")
	return nil
}

// DeleteSession removes the stored session. Deleting a missing session is not
// an error.
func DeleteSession() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete auth session from keyring: %w", err)
	}
	logging.Debug("session", "auth session deleted from keyring")
	return nil
}

// Expired reports whether the session is beyond recovery: both the access
// token and the refresh token have expired.
func (s *AuthSession) Expired() bool {
	now := time.Now()
	return now.After(s.AccessTokenExpiry) && now.After(s.RefreshTokenExpiry)
}

// SetRegistryCredential stores credentials for a registry and persists the
// session.
func (s *AuthSession) SetRegistryCredential(registry string, cred RegistryCredential) error {
	if s.RegistryAuth == nil {
		s.RegistryAuth = make(map[string]RegistryCredential)
	}
	s.RegistryAuth[registry] = cred
	if err := s.Save(); err != nil {
		return err
	}
	logging.Debug("session", "saved registry credentials for %s", registry)
	return nil
}

// RegistryCredential looks up stored credentials for a registry.
func (s *AuthSession) RegistryCredential(registry string) (RegistryCredential, bool) {
	cred, ok := s.RegistryAuth[registry]
	return cred, ok
}
