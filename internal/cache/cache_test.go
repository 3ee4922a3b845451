package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyScopesBySourceAndKind(t *testing.T) {
	a := Key("tree.yaml", "person", "I1")
	assert.Equal(t, a, Key("tree.yaml", "person", "I1"))
	assert.NotEqual(t, a, Key("other.yaml", "person", "I1"))
	assert.NotEqual(t, a, Key("tree.yaml", "family", "I1"))
	assert.Contains(t, a, "lifespan:v1:person:")
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := Key("src", "event", "E1")
	require.NoError(t, c.Set(key, []byte("payload"), 0))

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), v)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get(key)
	assert.False(t, ok)

	assert.NoError(t, c.Delete(key))
}

func TestDiskCacheNoExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	require.NoError(t, c.Set("k", []byte("v"), 0))
	c.now = func() time.Time { return time.Now().Add(100 * 365 * 24 * time.Hour) }

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestLayeredPromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDiskCache(dir, 0).Set("k", []byte("v"), 0))

	c := NewLayeredCache(time.Minute, dir, 0)
	assert.Equal(t, 0, c.memory.Len())

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, 1, c.memory.Len())

	require.NoError(t, c.Clear())
	_, ok = c.Get("k")
	assert.False(t, ok)
}
