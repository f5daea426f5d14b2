package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNetworkSpec(t *testing.T) {
	ip, id, err := splitNetworkSpec("backend")
	require.NoError(t, err)
	assert.Empty(t, ip)
	assert.Equal(t, "backend", id)

	ip, id, err = splitNetworkSpec("10.1.0.9@backend")
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.9", ip)
	assert.Equal(t, "backend", id)
}

func TestNextFreeIP(t *testing.T) {
	// Empty network: skips network address and gateway.
	ip, err := NextFreeIP("10.1.0.0/24", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.2", ip)

	// Used addresses are skipped.
	ip, err = NextFreeIP("10.1.0.0/24", []string{"10.1.0.2", "10.1.0.3"})
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.4", ip)

	// Gaps are reused.
	ip, err = NextFreeIP("10.1.0.0/24", []string{"10.1.0.2", "10.1.0.4"})
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.3", ip)

	// A /30 has exactly one assignable host after network, gateway and
	// broadcast are reserved.
	ip, err = NextFreeIP("10.1.0.0/30", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.2", ip)

	_, err = NextFreeIP("10.1.0.0/30", []string{"10.1.0.2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free addresses")

	_, err = NextFreeIP("not-a-cidr", nil)
	require.Error(t, err)
}

func TestResolveNetworkSpec(t *testing.T) {
	networkID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/networks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"networks":[{"id":%q,"name":"backend","ipv4_cidr":"10.1.0.0/24"}]}`, networkID)
	})
	mux.HandleFunc("/network/"+networkID.String(), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":%q,"name":"backend","ipv4_cidr":"10.1.0.0/24","created_at":"2026-01-01T00:00:00Z","instances":[{"id":%q,"internal_ip":"10.1.0.2"}]}`,
			networkID, uuid.New())
	})

	client, _ := testClient(t, mux, validSession())

	// Explicit IP: no allocation, no detail fetch needed.
	attachment, err := client.ResolveNetworkSpec(context.Background(), "10.1.0.9@backend")
	require.NoError(t, err)
	assert.Equal(t, networkID, attachment.NetworkID)
	assert.Equal(t, "10.1.0.9", attachment.InstanceIP)

	// Bare name: first free address past the taken ones.
	attachment, err = client.ResolveNetworkSpec(context.Background(), "backend")
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.3", attachment.InstanceIP)

	// Unknown network name.
	_, err = client.ResolveNetworkSpec(context.Background(), "frontend")
	require.Error(t, err)
}
