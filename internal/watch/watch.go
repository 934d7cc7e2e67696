// Package watch emits the file changes of a project tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
)

// DefaultQueueSize is the number of events buffered before dropping.
const DefaultQueueSize = 256

// WatcherConfig is the configuration for the watcher.
type WatcherConfig struct {
	Root string
	// Ignore skips directories from being watched.
	Ignore    *Matcher
	QueueSize int
	Logger    log.Logger
}

func (c *WatcherConfig) defaults() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.Ignore == nil {
		c.Ignore = &Matcher{}
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "watch.Watcher"})
	return nil
}

// Watcher watches a directory tree recursively. Events carry slash separated
// paths relative to the root and are never emitted for directories.
type Watcher struct {
	root      string
	ignore    *Matcher
	fsw       *fsnotify.Watcher
	events    chan model.FileEvent
	dirs      map[string]bool
	mu        sync.Mutex
	closeOnce sync.Once
	logger    log.Logger
}

// NewWatcher creates a watcher subscribed to every non ignored directory of the root.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}

	w := &Watcher{
		root:   root,
		ignore: cfg.Ignore,
		fsw:    fsw,
		events: make(chan model.FileEvent, cfg.QueueSize),
		dirs:   map[string]bool{},
		logger: cfg.Logger,
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Events returns the channel of file events, it's closed when Run ends.
func (w *Watcher) Events() <-chan model.FileEvent { return w.events }

// Run forwards the file system notifications until the context ends.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warningf("File watcher error: %s", err)
		}
	}
}

// Close releases the file system subscription.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fsw.Close() })
	return err
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Has(fsnotify.Create):
		if w.isDir(ev.Name) {
			if !w.ignore.Match(rel) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warningf("Could not watch new directory %s: %s", rel, err)
				}
			}
			return
		}
		w.emit(model.FileEvent{Path: rel, Type: model.FileEventCreated})

	case ev.Has(fsnotify.Write):
		if w.isDir(ev.Name) {
			return
		}
		w.emit(model.FileEvent{Path: rel, Type: model.FileEventModified})

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.forgetDir(ev.Name) {
			return
		}
		w.emit(model.FileEvent{Path: rel, Type: model.FileEventDeleted})
	}
}

// emit queues the event without blocking, it returns false if it was dropped.
func (w *Watcher) emit(ev model.FileEvent) bool {
	select {
	case w.events <- ev:
		return true
	default:
		w.logger.Warningf("Event queue full, dropping %s event of %s", ev.Type, ev.Path)
		return false
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can disappear while walking.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.ignore.Match(rel) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("could not watch %s: %w", path, err)
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()

		return nil
	})
}

func (w *Watcher) isDir(path string) bool {
	w.mu.Lock()
	known := w.dirs[path]
	w.mu.Unlock()
	if known {
		return true
	}

	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[path] {
		return false
	}
	delete(w.dirs, path)
	return true
}
