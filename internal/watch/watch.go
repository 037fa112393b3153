// Package watch implements the incremental updater (spec.md §4.7): a
// debounced filesystem watcher that routes surviving add/modify/remove
// events to the content and definition index updaters.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType mirrors the teacher's FileEventType enum.
type EventType int

const (
	EventWrite EventType = iota
	EventRemove
)

// Updaters are the two index mutation sinks a surviving event is routed
// to (spec.md §4.7: "route to the content index updater and the
// definition index updater").
type Updaters struct {
	OnUpdate func(relPath string) error
	OnRemove func(relPath string) error
}

// Watcher monitors root for changes and, after debouncing, drives
// Updaters with relative paths.
type Watcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	updaters  Updaters
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]EventType
	timer   *time.Timer
}

// New creates a Watcher rooted at root with the given debounce window.
func New(root string, debounce time.Duration, updaters Updaters) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:     root,
		watcher:  fw,
		debounce: debounce,
		updaters: updaters,
		logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
		ctx:      ctx,
		cancel:   cancel,
		pending:  map[string]EventType{},
	}
	return w, nil
}

// Start adds recursive watches under root (skipping .git at the
// filesystem level, per spec.md §4.7) and begins processing events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
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
			w.logger.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if strings.Contains(filepath.ToSlash(event.Name), "/.git/") || filepath.Base(event.Name) == ".git" {
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if event.Op&fsnotify.Create != 0 {
		if info, ierr := os.Stat(event.Name); ierr == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
			return
		}
	}

	var et EventType
	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		et = EventRemove
	case event.Op&fsnotify.Create != 0, event.Op&fsnotify.Write != 0:
		et = EventWrite
	default:
		return
	}

	w.mu.Lock()
	w.pending[rel] = et
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

// flush applies every coalesced event since the last quiet window,
// routing to OnUpdate/OnRemove (spec.md §4.7's "route to the content
// index updater and the definition index updater").
func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = map[string]EventType{}
	w.timer = nil
	w.mu.Unlock()

	start := time.Now()
	for rel, et := range batch {
		var err error
		switch et {
		case EventRemove:
			if w.updaters.OnRemove != nil {
				err = w.updaters.OnRemove(rel)
			}
		default:
			if w.updaters.OnUpdate != nil {
				err = w.updaters.OnUpdate(rel)
			}
		}
		if err != nil {
			w.logger.Printf("update %s: %v", rel, err)
		}
	}
	if len(batch) > 0 {
		w.logger.Printf("processed %d events in %s", len(batch), time.Since(start))
	}
}
