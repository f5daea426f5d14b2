package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry serves the /v2/ probe, the token endpoint and manifests for a
// single repository over plain HTTP.
type fakeRegistry struct {
	server       *httptest.Server
	requireAuth  bool
	wantUsername string
	wantPassword string

	manifests map[string]any

	lastScope string
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{manifests: map[string]any{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		if f.requireAuth {
			w.Header().Set("WWW-Authenticate",
				fmt.Sprintf(`Bearer realm=%q,service="test-registry"`, f.server.URL+"/token"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.lastScope = r.URL.Query().Get("scope")
		if f.wantUsername != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != f.wantUsername || pass != f.wantPassword {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		json.NewEncoder(w).Encode(TokenResponse{Token: "granted-token", ExpiresIn: 300})
	})
	mux.HandleFunc("/v2/acme/app/manifests/", func(w http.ResponseWriter, r *http.Request) {
		if f.requireAuth && r.Header.Get("Authorization") != "Bearer granted-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ref := strings.TrimPrefix(r.URL.Path, "/v2/acme/app/manifests/")
		manifest, ok := f.manifests[ref]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(manifest)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// host returns the registry host:port, usable as a Reference registry.
func (f *fakeRegistry) host() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

func (f *fakeRegistry) reference(t *testing.T, tag string) Reference {
	t.Helper()
	ref, err := ParseReference(f.host() + "/acme/app:" + tag)
	require.NoError(t, err)
	return ref
}

func testRegistryClient(credentials Credentials) *Client {
	client := NewClient(credentials)
	client.scheme = "http"
	return client
}

func singleManifest() map[string]any {
	return map[string]any{
		"schemaVersion": 2,
		"mediaType":     mediaTypeOCIManifest,
		"config":        map[string]any{"digest": "sha256:cfg", "size": 100},
		"layers":        []any{map[string]any{"digest": "sha256:l1", "size": 1000}},
	}
}

func TestParseWWWAuthenticate(t *testing.T) {
	challenge, err := parseWWWAuthenticate(
		`Bearer realm="https://auth.docker.io/token",service="registry.docker.io",scope="repository:library/nginx:pull"`)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.docker.io/token", challenge.Realm)
	assert.Equal(t, "registry.docker.io", challenge.Service)
	assert.Equal(t, "repository:library/nginx:pull", challenge.Scope)

	_, err = parseWWWAuthenticate(`Basic realm="host"`)
	assert.Error(t, err)

	_, err = parseWWWAuthenticate(`Bearer service="x"`)
	assert.Error(t, err)
}

func TestLoginAnonymousRegistry(t *testing.T) {
	f := newFakeRegistry(t)

	grant, err := testRegistryClient(nil).Login(context.Background(), f.host(), "", "")
	require.NoError(t, err)
	assert.Empty(t, grant.Bearer())
}

func TestLoginWithCredentials(t *testing.T) {
	f := newFakeRegistry(t)
	f.requireAuth = true
	f.wantUsername = "octocat"
	f.wantPassword = "secret"

	grant, err := testRegistryClient(nil).Login(context.Background(), f.host(), "octocat", "secret")
	require.NoError(t, err)
	assert.Equal(t, "granted-token", grant.Bearer())

	_, err = testRegistryClient(nil).Login(context.Background(), f.host(), "octocat", "wrong")
	assert.Error(t, err)
}

func TestPullTokenScope(t *testing.T) {
	f := newFakeRegistry(t)
	f.requireAuth = true
	f.wantUsername = "octocat"
	f.wantPassword = "secret"

	creds := func(registry string) (string, string, bool) {
		assert.Equal(t, f.host(), registry)
		return "octocat", "secret", true
	}

	token, err := testRegistryClient(creds).PullToken(context.Background(), f.reference(t, "v1"))
	require.NoError(t, err)
	assert.Equal(t, "granted-token", token)
	assert.Equal(t, "repository:acme/app:pull", f.lastScope)
}

func TestPullTokenRequiresCredentials(t *testing.T) {
	// A non-Docker-Hub registry with no stored credentials is an error before
	// any network traffic happens.
	_, err := testRegistryClient(nil).PullToken(context.Background(), Reference{
		Registry:   "ghcr.io",
		Repository: "acme/app",
		Tag:        "v1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry login ghcr.io")
}

func TestManifestDirect(t *testing.T) {
	f := newFakeRegistry(t)
	f.manifests["v1"] = singleManifest()

	manifest, err := testRegistryClient(nil).Manifest(context.Background(), f.reference(t, "v1"), "")
	require.NoError(t, err)
	assert.Equal(t, "sha256:cfg", manifest.Config.Digest)
	assert.Len(t, manifest.Layers, 1)
}

func TestManifestMultiPlatformIndex(t *testing.T) {
	f := newFakeRegistry(t)
	f.manifests["v1"] = map[string]any{
		"schemaVersion": 2,
		"mediaType":     mediaTypeOCIIndex,
		"manifests": []any{
			map[string]any{
				"digest":   "sha256:arm",
				"platform": map[string]any{"architecture": "arm64", "os": "linux"},
			},
			map[string]any{
				"digest":   "sha256:amd",
				"platform": map[string]any{"architecture": "amd64", "os": "linux"},
			},
		},
	}
	f.manifests["sha256:amd"] = singleManifest()

	manifest, err := testRegistryClient(nil).Manifest(context.Background(), f.reference(t, "v1"), "")
	require.NoError(t, err)
	assert.Equal(t, "sha256:cfg", manifest.Config.Digest)
}

func TestManifestNoCompatiblePlatform(t *testing.T) {
	f := newFakeRegistry(t)
	f.manifests["v1"] = map[string]any{
		"schemaVersion": 2,
		"manifests": []any{
			map[string]any{
				"digest":   "sha256:arm",
				"platform": map[string]any{"architecture": "arm64", "os": "linux"},
			},
		},
	}

	_, err := testRegistryClient(nil).Manifest(context.Background(), f.reference(t, "v1"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linux/amd64")
}

func TestManifestUnsupportedSchema(t *testing.T) {
	f := newFakeRegistry(t)
	f.manifests["v1"] = map[string]any{"schemaVersion": 1, "fsLayers": []any{}}

	_, err := testRegistryClient(nil).Manifest(context.Background(), f.reference(t, "v1"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version")
}

func TestVerifyAndGetPullToken(t *testing.T) {
	f := newFakeRegistry(t)
	f.requireAuth = true
	f.wantUsername = "octocat"
	f.wantPassword = "secret"
	f.manifests["v1"] = singleManifest()

	creds := func(string) (string, string, bool) { return "octocat", "secret", true }

	token, err := testRegistryClient(creds).VerifyAndGetPullToken(context.Background(), f.host()+"/acme/app:v1")
	require.NoError(t, err)
	assert.Equal(t, "granted-token", token)

	_, err = testRegistryClient(creds).VerifyAndGetPullToken(context.Background(), f.host()+"/acme/app:missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to verify image")
}
