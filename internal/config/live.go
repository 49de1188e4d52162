package config

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Live holds the current settings. Readers take one snapshot per operation.
type Live struct {
	cur atomic.Pointer[Settings]
}

func NewLive(s Settings) *Live {
	l := &Live{}
	l.Store(s)
	return l
}

func (l *Live) Load() Settings {
	return *l.cur.Load()
}

func (l *Live) Store(s Settings) {
	l.cur.Store(&s)
}

// Reload re-reads path and swaps the settings in. On error the previous
// settings stay active.
func (l *Live) Reload(path string) (Settings, error) {
	s, err := Load(path)
	if err != nil {
		return l.Load(), err
	}
	l.Store(s)
	return s, nil
}

// Watch reloads path whenever it changes until ctx is done. onChange runs after
// every successful swap.
func (l *Live) Watch(ctx context.Context, path string, logger *log.Logger, onChange func(old, cur Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files on save.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounce = time.After(200 * time.Millisecond)
			case <-debounce:
				debounce = nil
				old := l.Load()
				cur, err := l.Reload(path)
				if err != nil {
					if logger != nil {
						logger.Warn("settings reload failed; keeping previous", "path", path, "err", err)
					}
					continue
				}
				if logger != nil {
					logger.Info("settings reloaded", "path", path)
				}
				if onChange != nil {
					onChange(old, cur)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Warn("settings watcher", "err", err)
				}
			}
		}
	}()
	return nil
}
