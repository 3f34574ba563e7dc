package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/types"
)

func makeChannel(t *testing.T, name string) Channel[localStub, externalStub] {
	t.Helper()
	localPool, externalPool := testPools(1)
	ch, err := CreateChannel(
		types.NewServiceDescription(name, "main", "data"),
		localPool, externalPool, openLocal, openExternal)
	require.NoError(t, err)
	return ch
}

func TestChannelRegistry_InsertFindRemove(t *testing.T) {
	registry := newChannelRegistry[localStub, externalStub](4)

	a := makeChannel(t, "a")
	b := makeChannel(t, "b")
	require.True(t, registry.insert(a))
	require.True(t, registry.insert(b))
	assert.Equal(t, 2, registry.size())

	found, ok := registry.find(a.Service())
	require.True(t, ok)
	assert.Equal(t, a.Service(), found.Service())
	found.Release()

	_, ok = registry.find(types.NewServiceDescription("missing", "x", "y"))
	assert.False(t, ok)

	assert.True(t, registry.remove(a.Service()))
	assert.False(t, registry.remove(a.Service()))
	assert.Equal(t, 1, registry.size())

	registry.drain()
	assert.Equal(t, 0, registry.size())
}

func TestChannelRegistry_CapacityBound(t *testing.T) {
	registry := newChannelRegistry[localStub, externalStub](2)

	a := makeChannel(t, "a")
	b := makeChannel(t, "b")
	c := makeChannel(t, "c")
	require.True(t, registry.insert(a))
	require.True(t, registry.insert(b))

	assert.False(t, registry.insert(c), "insert beyond capacity must fail")
	assert.Equal(t, 2, registry.size())
	c.Release()

	registry.drain()
}

func TestChannelRegistry_RemoveKeepsClonesAlive(t *testing.T) {
	registry := newChannelRegistry[localStub, externalStub](2)

	ch := makeChannel(t, "lidar")
	require.True(t, registry.insert(ch))

	clone, ok := registry.find(ch.Service())
	require.True(t, ok)

	require.True(t, registry.remove(ch.Service()))
	assert.False(t, clone.LocalTerminal().Get().closed,
		"terminals must stay alive while a clone exists")

	clone.Release()
	assert.True(t, clone.LocalTerminal().Get().closed)
}

func TestChannelRegistry_ForEach(t *testing.T) {
	registry := newChannelRegistry[localStub, externalStub](4)
	for _, name := range []string{"a", "b", "c"} {
		require.True(t, registry.insert(makeChannel(t, name)))
	}

	seen := map[string]bool{}
	registry.forEach(func(ch *Channel[localStub, externalStub]) {
		seen[ch.Service().Service] = true
	})
	assert.Len(t, seen, 3)

	registry.drain()
}
