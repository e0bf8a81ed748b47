package cli

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 250 * time.Millisecond

// configWatcher reloads the config file when it changes on disk.
// Editors replace files rather than writing in place, so the parent
// directory is watched and events are filtered by name.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()

	mu      sync.Mutex
	pending *time.Timer
}

func newConfigWatcher(path string, onChange func()) (*configWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &configWatcher{
		watcher:  fsWatcher,
		path:     abs,
		onChange: onChange,
	}, nil
}

// Start begins watching until ctx is cancelled.
func (w *configWatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()
}

// Stop stops the watcher.
func (w *configWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *configWatcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	// Editors fire several events per save; coalesce them.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(watchDebounce, w.onChange)
}
