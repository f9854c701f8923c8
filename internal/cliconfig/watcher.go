package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hil-labs/wireship/pkg/log"
)

// Watcher monitors the config file via fsnotify and re-applies it on change.
// Values set explicitly on the command line keep precedence across reloads.
type Watcher struct {
	path    string
	base    Config
	changed map[string]bool
	onApply func(Config)
	logger  log.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the given config file. base is the
// configuration before file values were applied, so each reload starts
// from a clean slate rather than stacking onto the previous file's values.
// onApply receives every successfully reloaded configuration.
func NewWatcher(path string, base Config, changed map[string]bool, onApply func(Config), logger log.Logger) *Watcher {
	return &Watcher{
		path:    path,
		base:    base,
		changed: changed,
		onApply: onApply,
		logger:  logger,
	}
}

// Run watches the config file's directory until the context is cancelled.
// Watching the directory rather than the file survives editors that replace
// the file by rename.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher disabled", log.Err(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("config watcher disabled",
			log.String("dir", filepath.Dir(w.path)), log.Err(err))
		return
	}

	filename := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

// debounceReload coalesces bursts of filesystem events into one reload.
func (w *Watcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}

	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}

	cfg := w.base
	if err := ApplyFileConfig(&cfg, fc, w.changed); err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("config reload rejected", log.String("path", w.path), log.Err(err))
		return
	}

	w.logger.Info("configuration reloaded", log.String("path", w.path))
	w.onApply(cfg)
}
