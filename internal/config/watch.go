package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize config watcher")

const defaultReloadDelay = 200 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path    string
	delay   time.Duration
	watcher *fsnotify.Watcher
}

// NewWatcher watches path. The parent directory is watched because editors
// and config management tools replace files by rename.
func NewWatcher(path string) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config watcher needs a config file")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, delay: defaultReloadDelay, watcher: fw}, nil
}

// Run loads the file again after each burst of writes and passes the result
// to onChange. A file that fails to load or validate goes to onError and
// the caller keeps its previous configuration. Run returns when ctx is done
// or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config), onError func(error)) {
	if onError == nil {
		onError = func(error) {}
	}

	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.delay)

		case <-timer.C:
			cfg, err := Load(w.path)
			if err != nil {
				onError(err)
				continue
			}
			onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			onError(fmt.Errorf("watching config: %w", err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
