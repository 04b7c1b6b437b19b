// Package watch reloads a SQL file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Options configures File.
type Options struct {
	// Debounce collapses bursts of writes into one reload.
	Debounce time.Duration
	Logger   *slog.Logger
}

// File calls onChange with the contents of path once at start and again
// after every settled write, until ctx is done. The parent directory is
// watched rather than the file, so editors that save by rename keep working.
// Read failures after start are logged and skipped.
func File(ctx context.Context, path string, opts Options, onChange func(ctx context.Context, content string)) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	initial, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("watching file", slog.String("path", abs))

	onChange(ctx, string(initial))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			data, err := os.ReadFile(abs)
			if err != nil {
				logger.Warn("reload failed", slog.String("path", abs), slog.Any("error", err))
				continue
			}
			logger.Debug("file changed", slog.String("path", abs))
			onChange(ctx, string(data))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", slog.Any("error", err))
		}
	}
}
