package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/unisrv/unisrv-cli/internal/logging"
)

const logSubsystem = "registry"

// Credentials looks up stored credentials for a registry host. A false return
// means no credentials are stored.
type Credentials func(registry string) (username, password string, ok bool)

// Client talks the OCI distribution protocol to container registries.
type Client struct {
	http        *http.Client
	scheme      string
	credentials Credentials
}

// NewClient builds a registry client. credentials may be nil when only
// anonymous access is needed.
func NewClient(credentials Credentials) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.Logger = nil

	return &Client{
		http:        retry.StandardClient(),
		scheme:      "https",
		credentials: credentials,
	}
}

// TokenResponse is a registry auth service's token grant.
type TokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Bearer returns whichever token field the auth service populated.
func (t TokenResponse) Bearer() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

// Login authenticates against a registry using its advertised auth service and
// returns the granted token. A zero TokenResponse with nil error means the
// registry allows anonymous access.
func (c *Client) Login(ctx context.Context, registry, username, password string) (TokenResponse, error) {
	challenge, err := c.probe(ctx, registry)
	if err != nil {
		return TokenResponse{}, err
	}
	if challenge == nil {
		logging.Debug(logSubsystem, "registry %s allows anonymous access", registry)
		return TokenResponse{}, nil
	}
	return c.requestToken(ctx, challenge, challenge.Scope, username, password)
}

// PullToken obtains a token scoped to pulling the referenced repository. An
// empty token with nil error means the registry needs no auth.
func (c *Client) PullToken(ctx context.Context, ref Reference) (string, error) {
	registry := ref.Host()

	var username, password string
	if c.credentials != nil {
		username, password, _ = c.credentials(registry)
	}

	// Docker Hub grants anonymous pull tokens; everything else needs stored
	// credentials.
	if username == "" && registry != dockerHub {
		return "", fmt.Errorf("no credentials for registry %q, login first with: unisrv registry login %s -u <username> --password-stdin", registry, registry)
	}

	challenge, err := c.probe(ctx, registry)
	if err != nil {
		return "", err
	}
	if challenge == nil {
		return "", nil
	}

	scope := fmt.Sprintf("repository:%s:pull", ref.Repository)
	grant, err := c.requestToken(ctx, challenge, scope, username, password)
	if err != nil {
		return "", fmt.Errorf("failed to authenticate with registry %q: %w", registry, err)
	}
	return grant.Bearer(), nil
}

// VerifyImage fetches the image's manifest to confirm the reference points at
// a pullable linux/amd64 image.
func (c *Client) VerifyImage(ctx context.Context, ref Reference, token string) error {
	_, err := c.Manifest(ctx, ref, token)
	return err
}

// VerifyAndGetPullToken resolves an image reference, obtains a pull token for
// it and verifies the image exists. The token is handed to new instances so
// their hosts can pull the image.
func (c *Client) VerifyAndGetPullToken(ctx context.Context, image string) (string, error) {
	ref, err := ParseReference(image)
	if err != nil {
		return "", err
	}
	token, err := c.PullToken(ctx, ref)
	if err != nil {
		return "", err
	}
	if err := c.VerifyImage(ctx, ref, token); err != nil {
		return "", fmt.Errorf("failed to verify image %s: %w", ref, err)
	}
	return token, nil
}

// authChallenge is a parsed Bearer challenge from a WWW-Authenticate header.
type authChallenge struct {
	Realm   string
	Service string
	Scope   string
}

// probe hits /v2/ to discover the registry's auth service. A nil challenge
// means the registry accepted the request without authentication.
func (c *Client) probe(ctx context.Context, registry string) (*authChallenge, error) {
	probeURL := fmt.Sprintf("%s://%s/v2/", c.scheme, registry)
	logging.Debug(logSubsystem, "probing registry endpoint %s", probeURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach registry %q: %w", registry, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil, nil
	}

	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		return nil, fmt.Errorf("registry %q returned HTTP %d without a WWW-Authenticate header", registry, resp.StatusCode)
	}
	return parseWWWAuthenticate(header)
}

// requestToken asks the auth service for a token, optionally scoped and
// optionally authenticated with basic auth.
func (c *Client) requestToken(ctx context.Context, challenge *authChallenge, scope, username, password string) (TokenResponse, error) {
	params := url.Values{}
	if challenge.Service != "" {
		params.Set("service", challenge.Service)
	}
	if scope != "" {
		params.Set("scope", scope)
	}

	tokenURL := challenge.Realm
	if encoded := params.Encode(); encoded != "" {
		tokenURL += "?" + encoded
	}
	logging.Debug(logSubsystem, "requesting token from %s", tokenURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return TokenResponse{}, err
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, fmt.Errorf("token request rejected: HTTP %d", resp.StatusCode)
	}

	var grant TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	return grant, nil
}

// parseWWWAuthenticate parses a header like
//
//	Bearer realm="https://auth.docker.io/token",service="registry.docker.io"
func parseWWWAuthenticate(header string) (*authChallenge, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, fmt.Errorf("unsupported auth scheme in %q, expected Bearer", header)
	}

	challenge := &authChallenge{}
	for _, part := range strings.Split(strings.TrimPrefix(header, "Bearer "), ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.TrimSpace(key) {
		case "realm":
			challenge.Realm = value
		case "service":
			challenge.Service = value
		case "scope":
			challenge.Scope = value
		}
	}

	if challenge.Realm == "" {
		return nil, fmt.Errorf("no realm in WWW-Authenticate header %q", header)
	}
	return challenge, nil
}
