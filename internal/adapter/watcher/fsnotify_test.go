package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncedChange(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fired := make(chan struct{}, 10)
	w := New(func(p string) bool { return strings.HasSuffix(p, ".pdf") }, 100*time.Millisecond,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	done, err := w.Watch(ctx, dir, func(context.Context) error {
		calls.Add(1)
		fired <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("%PDF-1.4"), 0o644))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("change callback not called")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_IgnoresUnmatched(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	w := New(func(p string) bool { return strings.HasSuffix(p, ".pdf") }, 50*time.Millisecond, nil)
	_, err := w.Watch(ctx, dir, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.tmp"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcher_MissingDir(t *testing.T) {
	w := New(nil, 0, nil)
	_, err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func(context.Context) error { return nil })
	assert.Error(t, err)
}
