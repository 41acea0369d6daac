package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of writes from editors into one run.
const watchDebounce = 300 * time.Millisecond

// watchFile calls run once, then again after every change to path, until
// ctx is done. Errors from run are passed to onError and watching continues.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, run func(context.Context) error, onError func(error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	// Editors often replace the file, so watch its directory.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	if err := run(ctx); err != nil {
		onError(err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("prompt file changed", "path", abs, "op", event.Op.String())
			pending = time.After(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-pending:
			pending = nil
			if err := run(ctx); err != nil {
				onError(err)
			}
		}
	}
}
