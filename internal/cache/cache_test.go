package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 100*time.Millisecond))

	payload, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), payload)

	time.Sleep(150 * time.Millisecond)

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// the expired entry must have been evicted, not just hidden
	store.mu.Lock()
	_, present := store.entries["k"]
	store.mu.Unlock()
	assert.False(t, present)
}

func TestMemoryOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("new"), time.Minute))

	payload, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), payload)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	store := Nop{}

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTypedRoundTrip(t *testing.T) {
	type profile struct {
		Name  string `json:"name"`
		Posts int    `json:"posts"`
	}

	ctx := context.Background()
	typed := NewTyped[profile](NewMemory())

	require.NoError(t, typed.Set(ctx, "p", profile{Name: "alice", Posts: 3}, time.Minute))

	got, ok := typed.Get(ctx, "p")
	require.True(t, ok)
	assert.Equal(t, profile{Name: "alice", Posts: 3}, got)

	_, ok = typed.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTypedUndecodableMisses(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Set(ctx, "k", []byte("not json"), time.Minute))

	typed := NewTyped[map[string]string](store)
	_, ok := typed.Get(ctx, "k")
	assert.False(t, ok)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	payload, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), payload)

	// expired entries are evicted on read
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	store.now = time.Now
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
