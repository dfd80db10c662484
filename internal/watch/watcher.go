// Package watch re-runs a search when files under the search root change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/pattern"
	"github.com/standardbeagle/lcs/internal/protocol"
)

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 300 * time.Millisecond

// Options configure a Watcher.
type Options struct {
	Root string
	// Exclude is merged with protocol.DefaultExcludePattern. Excluded
	// directories are not watched and excluded files never fire OnChange.
	Exclude  string
	Debounce time.Duration
	// OnChange runs once per burst of changes, on its own goroutine.
	OnChange func()
}

// Watcher monitors a directory tree and reports changes through a single
// debounced callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	exclude  *pattern.Exclude
	debounce time.Duration
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
	fired int64
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, fmt.Errorf("watch: OnChange is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:  fsw,
		root:     root,
		exclude:  pattern.NewExclude(pattern.Merge(protocol.DefaultExcludePattern, opts.Exclude)),
		debounce: opts.Debounce,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start adds watches for the whole tree and begins processing events.
func (w *Watcher) Start() error {
	debug.LogWatch("starting watcher for %s (pruning %s)", w.root, strings.Join(w.exclude.DirNames(), ","))
	if err := w.addWatches(w.root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", w.root, err)
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop ends watching and waits for the event loop to exit. A pending
// callback is dropped.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	debug.LogWatch("watcher stopped")
	return err
}

// Fired returns how many times OnChange has been called.
func (w *Watcher) Fired() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// addWatches walks dir and watches every directory the exclude list keeps.
func (w *Watcher) addWatches(dir string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && w.exclude.MatchDir(d.Name()) {
			return filepath.SkipDir
		}

		// Symlinked directories are not followed by WalkDir, but the root
		// itself may be one.
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return filepath.SkipDir
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if err := w.watcher.Add(path); err != nil {
			debug.LogWatch("failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.LogWatch("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if w.exclude.MatchDir(info.Name()) {
			return
		}
		if event.Op&fsnotify.Create != 0 {
			// Files may have landed in the new directory before the watch.
			if err := w.addWatches(event.Name); err != nil {
				debug.LogWatch("failed to watch new directory %s: %v", event.Name, err)
			}
			w.schedule()
		}
		return
	}

	if w.exclude.MatchFile(rel) {
		return
	}
	debug.LogWatch("%s %s", event.Op, rel)
	w.schedule()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timer != t || w.ctx.Err() != nil {
			w.mu.Unlock()
			return
		}
		w.timer = nil
		w.fired++
		w.mu.Unlock()
		w.onChange()
	})
	w.timer = t
}
