package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/unisrv/unisrv-cli/internal/config"
)

// testClient builds a client against an httptest server.
func testClient(t *testing.T, handler http.Handler, session *AuthSession) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Config{
		APIHost:  strings.TrimPrefix(server.URL, "http://"),
		Insecure: true,
	}
	return New(cfg, session), server
}

func validSession() *AuthSession {
	return &AuthSession{
		UserID:             uuid.New(),
		AccessToken:        "valid-token",
		AccessTokenExpiry:  time.Now().Add(time.Hour),
		RefreshSessionID:   uuid.New(),
		RefreshToken:       "refresh-token",
		RefreshTokenExpiry: time.Now().Add(24 * time.Hour),
	}
}

func TestLogin(t *testing.T) {
	keyring.MockInit()

	userID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/basic", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "hunter2", pass)
		json.NewEncoder(w).Encode(LoginResponse{
			UserID:           userID,
			Token:            "fresh-token",
			ExpiresAt:        time.Now().Add(time.Hour),
			RefreshSessionID: uuid.New(),
			RefreshToken:     "fresh-refresh",
			RefreshExpiresAt: time.Now().Add(24 * time.Hour),
		})
	})

	client, _ := testClient(t, mux, nil)
	require.NoError(t, client.Login(context.Background(), "alice", "hunter2"))

	require.NotNil(t, client.Session())
	assert.Equal(t, userID, client.Session().UserID)
	assert.Equal(t, "fresh-token", client.Session().AccessToken)

	// The session was persisted.
	loaded, err := LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "fresh-token", loaded.AccessToken)
}

func TestLoginRejected(t *testing.T) {
	keyring.MockInit()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/basic", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"reason": "bad credentials"})
	})

	client, _ := testClient(t, mux, nil)
	err := client.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestBearerTokenInjected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/instance/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(instanceListResponse{})
	})

	client, _ := testClient(t, mux, validSession())
	_, err := client.ListInstances(context.Background())
	require.NoError(t, err)
}

func TestTokenRefreshFlow(t *testing.T) {
	keyring.MockInit()

	session := validSession()
	session.AccessTokenExpiry = time.Now().Add(-time.Minute) // force a refresh

	refreshed := false
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshed = true
		assert.Equal(t, "Bearer refresh-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, session.RefreshSessionID.String(), body["id"])
		assert.Equal(t, "refresh-token", body["token"])

		json.NewEncoder(w).Encode(LoginResponse{
			UserID:           session.UserID,
			Token:            "rotated-token",
			ExpiresAt:        time.Now().Add(time.Hour),
			RefreshSessionID: uuid.New(),
			RefreshToken:     "rotated-refresh",
			RefreshExpiresAt: time.Now().Add(24 * time.Hour),
		})
	})

	client, _ := testClient(t, mux, session)
	token, err := client.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "rotated-token", token)
	assert.Equal(t, "rotated-refresh", client.Session().RefreshToken)
}

func TestTokenRefreshExpired(t *testing.T) {
	keyring.MockInit()

	session := validSession()
	session.AccessTokenExpiry = time.Now().Add(-2 * time.Hour)
	session.RefreshTokenExpiry = time.Now().Add(-time.Hour)

	client, _ := testClient(t, http.NewServeMux(), session)
	_, err := client.Token(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, client.Session())
}

func TestEnsureAuth(t *testing.T) {
	client := New(config.Config{APIHost: "api.example.com"}, nil)
	assert.ErrorIs(t, client.EnsureAuth(), ErrNotLoggedIn)

	dead := validSession()
	dead.AccessTokenExpiry = time.Now().Add(-2 * time.Hour)
	dead.RefreshTokenExpiry = time.Now().Add(-time.Hour)
	client = New(config.Config{APIHost: "api.example.com"}, dead)
	assert.ErrorIs(t, client.EnsureAuth(), ErrSessionExpired)

	client = New(config.Config{APIHost: "api.example.com"}, validSession())
	assert.NoError(t, client.EnsureAuth())
}

func TestErrorReasonDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/instance/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"reason": "quota exceeded"})
	})

	client, _ := testClient(t, mux, validSession())
	_, err := client.ListInstances(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "quota exceeded", apiErr.Reason)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestErrorServiceUnavailable(t *testing.T) {
	err := &Error{Op: "GET /services", StatusCode: http.StatusServiceUnavailable, Reason: "maintenance"}
	assert.Equal(t, "service temporarily unavailable: maintenance", err.Error())
}
