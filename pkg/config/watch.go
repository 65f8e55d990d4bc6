package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 150 * time.Millisecond

// Watch calls onChange with the reloaded config each time the file at path
// changes, until ctx is done. The parent directory is watched so that
// editors which replace the file on save are followed. A file that fails to
// parse is logged and skipped; the previous config stays in effect.
func Watch(ctx context.Context, path string, log *slog.Logger, onChange func(*Config)) error {
	log = logger.OrNop(log)

	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching config dir: %w", err)
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			settle = time.After(watchDebounce)

		case <-settle:
			settle = nil

			cfg, err := LoadFile(path)
			if err != nil {
				log.Warn("ignoring invalid config change",
					"path", path,
					"error", err,
				)
				continue
			}

			log.Info("config reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("config watcher error: %w", err)
		}
	}
}
