package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "settings.json")

	var fired atomic.Int32
	w, err := New(target, func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Let the watch register before touching the file
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(target, []byte(`{"port":9000}`), 0o644))

	assert.Eventually(t, func() bool { return fired.Load() >= 1 },
		2*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "settings.json")

	var fired atomic.Int32
	w, err := New(target, func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, fired.Load(), "changes to sibling files must not fire")
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "settings.json"), func() {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
