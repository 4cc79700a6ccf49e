package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay collapses the burst of events an atomic rename produces.
const reloadDelay = 300 * time.Millisecond

// Watch reloads the dataset whenever the artifact is written or replaced,
// calling onReload with each new snapshot. It watches the parent
// directory so renames over the file are seen. Watch blocks until ctx is
// cancelled.
func (s *Store) Watch(ctx context.Context, onReload func(*Dataset)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)
	s.log.Info().Str("path", target).Msg("watching dataset")

	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(reloadDelay)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			ds, err := s.Load()
			if err != nil {
				s.log.Error().Err(err).Msg("reload failed, keeping previous dataset")
				continue
			}
			if onReload != nil {
				onReload(ds)
			}
		}
	}
}
