package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDisabled(t *testing.T) {
	store, err := Open(Config{})
	require.NoError(t, err)
	assert.Nil(t, store, "empty backend disables persistence")
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "etcd"})
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	store, err := Open(Config{Backend: "sqlite", Path: path})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "sess-1", `{"connectedAt":"2025-03-15T10:30:00Z"}`))

	value, found, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"connectedAt":"2025-03-15T10:30:00Z"}`, value)

	// Upsert replaces the value
	require.NoError(t, store.Put(ctx, "sess-1", `{"connectedAt":"2025-03-15T11:00:00Z"}`))
	value, found, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, value, "11:00:00")

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, found, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing key is a no-op
	assert.NoError(t, store.Delete(ctx, "sess-1"))
}
