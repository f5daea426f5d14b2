package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubTokens replaces the random source with a canned sequence. The last
// value repeats once the sequence runs out.
func stubTokens(t *testing.T, values ...string) {
	t.Helper()
	original := newTokenSource
	t.Cleanup(func() { newTokenSource = original })

	i := 0
	newTokenSource = func() string {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

func TestGenerationToken(t *testing.T) {
	stubTokens(t, "ab12deadbeefdeadbeefdeadbeefdead")
	assert.Equal(t, "ab12", generationToken("svc", "default", nil))
}

func TestGenerationTokenAvoidsCollision(t *testing.T) {
	stubTokens(t,
		"ab12deadbeefdeadbeefdeadbeefdead",
		"cd34deadbeefdeadbeefdeadbeefdead",
	)
	existing := []string{"svc_default_ab12_0", "svc_default_ab12_1", "unrelated"}
	assert.Equal(t, "cd34", generationToken("svc", "default", existing))
}

func TestGenerationTokenScopedToGroup(t *testing.T) {
	// The same hex under a different group prefix is not a collision.
	stubTokens(t, "ab12deadbeefdeadbeefdeadbeefdead")
	existing := []string{"svc_canary_ab12_0"}
	assert.Equal(t, "ab12", generationToken("svc", "default", existing))
}

func TestGenerationTokenWidensWhenExhausted(t *testing.T) {
	// Every 4-char draw collides; after the attempt cap the token widens to
	// 6 chars, which no longer prefixes any existing name.
	stubTokens(t, "ab12efdeadbeefdeadbeefdeadbeefde")
	existing := []string{"svc_default_ab12_0"}
	assert.Equal(t, "ab12ef", generationToken("svc", "default", existing))
}
