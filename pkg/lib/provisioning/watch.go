package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events an atomic save produces.
const watchDebounce = 100 * time.Millisecond

// Watch calls onChange with the reloaded settings every time the settings
// file is written or replaced, until ctx is done. The parent directory is
// watched so that rename-based saves are seen. Files that fail to parse are
// logged and skipped.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger, onChange func(Settings)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Debug("watching settings", "path", s.path)

	target := filepath.Clean(s.path)
	var debounce <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce = time.After(watchDebounce)

		case <-debounce:
			debounce = nil
			settings, err := s.Load()
			if err != nil {
				logger.Warn("failed to reload settings", "path", s.path, "error", err)
				continue
			}
			logger.Info("settings reloaded", "path", s.path)
			onChange(settings)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}
