package layered

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// Reloader is implemented by *Config and by any struct embedding it.
type Reloader interface {
	Files() []string
	Reload() error
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for events to settle before
// reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *zap.Logger) WatchOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithOnReload registers a callback invoked after every reload attempt with
// its result.
func WithOnReload(fn func(error)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watcher reloads a configuration when any of its source files change.
type Watcher struct {
	target   Reloader
	logger   *zap.Logger
	debounce time.Duration
	onReload func(error)

	fsw     *fsnotify.Watcher
	tracked map[string]struct{}
	dirs    map[string]struct{}
}

// NewWatcher starts watching the directories holding the target's files.
// Directories are watched rather than files so that editors replacing a
// file by rename are still noticed. Call Run to process events.
//
// The file list is read again on every event and after every reload, so
// files added to the target later are tracked from then on. A file added in
// a directory that is not yet watched is noticed only once some other
// tracked file changes.
func NewWatcher(target Reloader, opts ...WatchOption) (*Watcher, error) {
	w := &Watcher{
		target:   target,
		logger:   zap.NewNop(),
		debounce: defaultDebounce,
		tracked:  make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.track(target.Files()); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// track adds paths not seen before and watches their directories.
// Directories that do not exist are logged and skipped.
func (w *Watcher) track(paths []string) error {
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		if _, ok := w.tracked[abs]; ok {
			continue
		}
		w.tracked[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			w.logger.Warn("configuration directory not watchable", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}
	return nil
}

func (w *Watcher) refresh() {
	if err := w.track(w.target.Files()); err != nil {
		w.logger.Warn("configuration watch list not refreshed", zap.Error(err))
	}
}

// Run processes file events until ctx is cancelled, then closes the
// underlying watcher. Reloads happen on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.fsw.Close()
	}()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info("watching configuration files", zap.Int("files", len(w.tracked)))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.refresh()
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("configuration file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("configuration watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	_, ok := w.tracked[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) reload() {
	err := w.target.Reload()
	if err != nil {
		w.logger.Error("automatic configuration reload failed", zap.Error(err))
	} else {
		w.logger.Info("configuration reloaded after file change")
	}
	w.refresh()
	if w.onReload != nil {
		w.onReload(err)
	}
}
