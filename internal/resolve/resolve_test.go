package resolve

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItem struct {
	id   uuid.UUID
	name string
}

func (f fakeItem) ResolveID() uuid.UUID  { return f.id }
func (f fakeItem) ResolveName() string   { return f.name }

func TestResolveFullUUID(t *testing.T) {
	id := uuid.New()
	// A well-formed UUID is returned directly, even with no items.
	got, err := ID(KindService, id.String(), []fakeItem{})
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestResolveByName(t *testing.T) {
	a := fakeItem{id: uuid.New(), name: "web"}
	b := fakeItem{id: uuid.New(), name: "api"}

	got, err := ID(KindService, "api", []fakeItem{a, b})
	require.NoError(t, err)
	assert.Equal(t, b.id, got)
}

func TestResolveDuplicateNamesFallThrough(t *testing.T) {
	a := fakeItem{id: uuid.New(), name: "web"}
	b := fakeItem{id: uuid.New(), name: "web"}

	// Two identical names cannot resolve, and "web" is not a hex prefix.
	_, err := ID(KindService, "web", []fakeItem{a, b})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, KindService, notFound.Kind)
}

func TestResolveByPrefix(t *testing.T) {
	a := fakeItem{id: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")}
	b := fakeItem{id: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")}

	got, err := ID(KindInstance, "aaaa", []fakeItem{a, b})
	require.NoError(t, err)
	assert.Equal(t, a.id, got)
}

func TestResolvePrefixAmbiguous(t *testing.T) {
	a := fakeItem{id: uuid.MustParse("abcd1111-0000-0000-0000-000000000000")}
	b := fakeItem{id: uuid.MustParse("abcd2222-0000-0000-0000-000000000000")}

	_, err := ID(KindInstance, "abcd", []fakeItem{a, b})
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, 2, ambiguous.Matches)
	assert.Contains(t, err.Error(), "2 instances")
}

func TestResolvePrefixNoMatch(t *testing.T) {
	a := fakeItem{id: uuid.MustParse("abcd1111-0000-0000-0000-000000000000")}

	_, err := ID(KindNetwork, "ffff", []fakeItem{a})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "network")
}

func TestResolveNonHexInput(t *testing.T) {
	a := fakeItem{id: uuid.New(), name: "web"}

	_, err := ID(KindHost, "nope!", []fakeItem{a})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolveEmptyInput(t *testing.T) {
	_, err := ID(KindService, "", []fakeItem{})
	assert.Error(t, err)
}

func TestResolveNameBeatsPrefix(t *testing.T) {
	// A name that also happens to be valid hex resolves by name first.
	a := fakeItem{id: uuid.MustParse("abcd1111-0000-0000-0000-000000000000")}
	b := fakeItem{id: uuid.MustParse("00000000-0000-0000-0000-000000000000"), name: "abcd"}

	got, err := ID(KindService, "abcd", []fakeItem{a, b})
	require.NoError(t, err)
	assert.Equal(t, b.id, got)
}
