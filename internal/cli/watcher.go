package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bastiangx/subserve/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher re-reads workspace files when they change on disk. Events are
// debounced, so a burst of writes settles each buffer once. Flushes run one
// at a time and Stop waits for the one in flight.
type Watcher struct {
	ws      *Workspace
	watcher *fsnotify.Watcher
	delay   time.Duration
	log     *log.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool

	// flushMu orders reload and settle pairs of overlapping flushes.
	flushMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for ws settling after delay of quiet.
func NewWatcher(ws *Workspace, delay time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{
		ws:      ws,
		watcher: fw,
		delay:   delay,
		log:     logger.New("watch"),
		pending: make(map[string]struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start watches the directories of every workspace file.
func (w *Watcher) Start() error {
	for _, dir := range w.ws.Dirs() {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.log.Debugf("Watching dir %s", dir)
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop ends event processing and waits for a running flush. Pending events
// are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	clear(w.pending)
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
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
			w.log.Errorf("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if !w.ws.Has(event.Name) && !w.ws.Matches(event.Name) {
		return
	}
	w.log.Debugf("event %v for %s", event.Op, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[event.Name] = struct{}{}
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.timer = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		w.flush()
	})
}

// flush reloads every path that saw events, dropping the ones that no
// longer exist.
func (w *Watcher) flush() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	paths := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for path := range paths {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			if w.ws.Remove(path) {
				w.log.Debugf("Dropped %s", path)
			}
		case info.Mode().IsRegular():
			if err := w.ws.LoadFile(path); err != nil {
				w.log.Warnf("Reloading %s: %v", path, err)
			}
		}
	}
}
