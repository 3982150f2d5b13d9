package server

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 100 * time.Millisecond

// watch invalidates the cached dataset whenever the local data file is
// written, replaced or removed. Remote locations are not watched.
func (s *Server) watch(ctx context.Context) error {
	loc := s.app.Location()
	if strings.Contains(loc, "://") && !strings.HasPrefix(loc, "file://") {
		s.log.Warn("watch ignored for remote data", zap.String("data", loc))
		return nil
	}
	path, err := filepath.Abs(strings.TrimPrefix(loc, "file://"))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", loc, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	s.log.Info("watching data file", zap.String("path", path))

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				if s.app.Invalidate() {
					s.log.Info("data file changed, cache invalidated", zap.String("path", path), zap.String("op", ev.Op.String()))
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("watcher error", zap.Error(err))
		}
	}
}
