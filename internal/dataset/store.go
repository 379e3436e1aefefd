package dataset

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/typikon/internal/models"
)

const reloadDebounce = 200 * time.Millisecond

// ReloadCallback is called after the watcher swaps in a new table.
type ReloadCallback func(t *Table)

// Store holds the current Table and replaces it atomically on reload.
// Readers always see one complete version.
type Store struct {
	path    string
	current atomic.Pointer[Table]
}

// Open loads path and returns a Store serving it.
func Open(path string) (*Store, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(t)
	return s, nil
}

// Table returns the current table.
func (s *Store) Table() *Table {
	return s.current.Load()
}

// Lookup returns the current reading for day, or nil.
func (s *Store) Lookup(day time.Time) *models.LocalReading {
	return s.Table().Lookup(day)
}

// Reload re-reads the file. It reports whether the content changed; on a
// parse error the previous table stays active.
func (s *Store) Reload() (bool, error) {
	t, err := Load(s.path)
	if err != nil {
		return false, err
	}
	if t.Checksum() == s.Table().Checksum() {
		return false, nil
	}
	s.current.Store(t)
	return true, nil
}

// Watch reloads the dataset whenever its file changes until ctx is
// cancelled. The parent directory is watched so editors that replace the
// file by rename are still seen. Bursts of events are debounced.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	name := filepath.Clean(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("dataset: watching", slog.String("path", s.path))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("dataset: watcher stopped")
			return nil

		case <-timerCh:
			changed, err := s.Reload()
			if err != nil {
				logger.Warn("dataset: reload failed, keeping previous table",
					slog.String("path", s.path),
					slog.String("error", err.Error()))
				continue
			}
			if !changed {
				logger.Debug("dataset: unchanged", slog.String("path", s.path))
				continue
			}
			t := s.Table()
			logger.Info("dataset: reloaded",
				slog.String("path", s.path),
				slog.Int("dates", t.Len()))
			if cb != nil {
				cb(t)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("dataset: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
