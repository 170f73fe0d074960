package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a callback after matching files under a directory
// settle. Bursts of events within the debounce window collapse into one
// call.
type Watcher struct {
	match    func(path string) bool
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a Watcher. match receives absolute event paths.
func New(match func(path string) bool, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{match: match, debounce: debounce, logger: logger}
}

// Watch adds dir and its subdirectories to a new fsnotify watcher and
// returns once they are registered. The returned channel is closed after
// ctx is cancelled and the event loop has exited. onChange never runs
// concurrently with itself.
func (w *Watcher) Watch(ctx context.Context, dir string, onChange func(context.Context) error) (<-chan struct{}, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer fw.Close()
		w.loop(ctx, fw, onChange)
	}()
	return done, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, onChange func(context.Context) error) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.Add(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if w.match != nil && !w.match(event.Name) {
				continue
			}
			w.logger.Debug("document change", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			start := time.Now()
			if err := onChange(ctx); err != nil {
				w.logger.Error("reindex after change failed", "error", err)
				continue
			}
			w.logger.Info("reindexed after change", "duration", time.Since(start))

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}
