// Package watch re-runs a callback when watched log files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last write before a change
// is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors files for changes. Callbacks run on the Run goroutine,
// one at a time.
type Watcher struct {
	fs       *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration

	mu    sync.Mutex
	files map[string]fileState

	OnChange func(ctx context.Context, path string) error
	OnError  func(path string, err error)
}

type fileState struct {
	modified time.Time
	size     int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher creates a watcher.
func NewWatcher(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		log:      zap.NewNop(),
		debounce: DefaultDebounce,
		files:    make(map[string]fileState),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Watch adds path. The containing directory is watched so that files
// replaced by rotation keep being tracked.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	w.mu.Lock()
	w.files[abs] = fileState{modified: st.ModTime(), size: st.Size()}
	w.mu.Unlock()

	if err := w.fs.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	return nil
}

// Run dispatches change callbacks until ctx is canceled, then closes the
// underlying watcher. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.watched(abs) {
				continue
			}
			w.log.Debug("file event", zap.String("path", abs), zap.String("op", event.Op.String()))
			pending[abs] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.reportError("", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				if ctx.Err() != nil {
					return nil
				}
				w.handleChange(ctx, p)
			}
		}
	}
}

// Close releases the watcher without running the loop.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) watched(abs string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

func (w *Watcher) handleChange(ctx context.Context, path string) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// removed mid-rotation; the Create event will follow
			return
		}
		w.reportError(path, err)
		return
	}

	w.mu.Lock()
	prev := w.files[path]
	changed := !st.ModTime().Equal(prev.modified) || st.Size() != prev.size
	w.files[path] = fileState{modified: st.ModTime(), size: st.Size()}
	w.mu.Unlock()

	if !changed || w.OnChange == nil {
		return
	}
	if err := w.OnChange(ctx, path); err != nil {
		w.reportError(path, err)
	}
}

func (w *Watcher) reportError(path string, err error) {
	w.log.Debug("watch error", zap.String("path", path), zap.Error(err))
	if w.OnError != nil {
		w.OnError(path, err)
	}
}
