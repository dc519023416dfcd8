package file

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

// Watch reloads the store whenever its file changes on disk, until ctx is
// cancelled. Editors often replace the file rather than write it in
// place, so the watch covers the containing directory.
func (s *ConfigStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Load(); err != nil {
				logger.Warn("Config reload failed: %v", err)
				continue
			}
			logger.Debug("Config reloaded from %s", s.filePath)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error: %v", err)
		}
	}
}
