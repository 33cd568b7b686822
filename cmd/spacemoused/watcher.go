package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ============================================================================
// Config watcher
// ============================================================================
//
// Editing the profile document (by hand or through the GUI) triggers the
// same deferred-reload path as SIGHUP and the RELOAD command. The parent
// directory is watched rather than the file itself so editors that replace
// the file (rename-over) keep working; events are debounced because a single
// save typically produces several.
// ============================================================================

const watchDebounce = 300 * time.Millisecond

// watchConfig watches the config file and calls requestReload after changes
// settle. Returns the watcher so the caller can close it on shutdown.
func watchConfig(path string, requestReload func(), logger *slog.Logger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		var timer *time.Timer
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					logger.Info("profile config changed on disk, scheduling reload", "path", path)
					requestReload()
				})

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	logger.Debug("watching profile config", "path", path)
	return w, nil
}
