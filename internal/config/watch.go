package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/campus/internal/logger"
)

// reloadDebounce absorbs the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the config file whenever it changes and passes each valid
// result to onChange. Invalid edits are logged and ignored, so the running
// configuration stays in effect. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, because editors
// commonly save by writing a temporary file and renaming it over the original.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("watching config: no config file in use")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching config: %w", err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher: %v", err)

		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("config reload rejected: %v", err)
				continue
			}
			logger.Info("config reloaded from %s", abs)
			onChange(cfg)
		}
	}
}
