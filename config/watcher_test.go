package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, Save(path, Default()))

	var reloads atomic.Int32
	latest := make(chan *Resolved, 8)

	w, err := NewWatcher(path, nil, func(r *Resolved) {
		reloads.Add(1)
		latest <- r
	})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// A burst of writes within the debounce window should collapse to one
	// reload carrying the final content.
	cfg := Default()
	for i := 31; i <= 33; i++ {
		cfg.Limits.MaxPullRequests = i
		require.NoError(t, Save(path, cfg))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case r := <-latest:
		assert.Equal(t, 33, r.Config.Limits.MaxPullRequests)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	// Allow a second debounce window to pass; no further reloads expected.
	time.Sleep(2 * watchDebounce)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, Save(path, Default()))

	reloaded := make(chan *Resolved, 1)
	w, err := NewWatcher(path, nil, func(r *Resolved) { reloaded <- r })
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("unexpected reload for unrelated file")
	case <-time.After(2 * watchDebounce):
	}
}
