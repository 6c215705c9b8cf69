package dataset

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher watches the data directory and invalidates the matching
// table whenever an export file is written, created, renamed or removed.
// The watcher stops when ctx is done.
func (d *Dataset) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	dir := d.dir
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go d.watch(ctx, watcher)

	d.logger.WithField("data_dir", dir).Info("Watching exports for changes")
	return nil
}

func (d *Dataset) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFileEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.WithError(err).Error("File watcher error")
		}
	}
}

func (d *Dataset) handleFileEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	switch {
	case d.isHistoryFile(event.Name):
		d.events.Invalidate()
		d.logger.WithField("file", event.Name).Info("Streaming history changed, reloading on next query")
	case filepath.Clean(event.Name) == filepath.Clean(d.playlistPath):
		d.playlists.Invalidate()
		d.logger.WithField("file", event.Name).Info("Playlist export changed, reloading on next query")
	}
}

func (d *Dataset) isHistoryFile(name string) bool {
	ok, err := filepath.Match(d.pattern, filepath.Base(name))
	return err == nil && ok
}
