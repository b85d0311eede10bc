package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bastiangx/subserve/internal/utils"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

// fileSource is the text of one file on disk. Reloads swap the rows under
// the lock so the index never reads a half written slice.
type fileSource struct {
	mu    sync.RWMutex
	lines suggest.Lines
}

func (f *fileSource) LineCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.lines)
}

func (f *fileSource) LineText(row int) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lines.LineText(row)
}

// swap replaces the rows and returns the settled change covering the rows
// that differ.
func (f *fileSource) swap(next suggest.Lines) suggest.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	start, end := diffRows(f.lines, next)
	f.lines = next
	return suggest.Change{StartRow: start, EndRow: end, TotalRows: len(next), CursorRow: start}
}

// diffRows returns the post-edit row range [start, end) outside of which
// old and next are identical.
func diffRows(old, next suggest.Lines) (start, end int) {
	for start < len(old) && start < len(next) && old[start] == next[start] {
		start++
	}
	oldEnd, newEnd := len(old), len(next)
	for oldEnd > start && newEnd > start && old[oldEnd-1] == next[newEnd-1] {
		oldEnd--
		newEnd--
	}
	return start, newEnd
}

// Workspace mirrors files matched by glob patterns into watched buffers.
// Buffer ids are absolute file paths.
type Workspace struct {
	provider *suggest.Provider
	session  string

	mu       sync.Mutex
	files    map[string]*fileSource
	patterns []string
}

// NewWorkspace creates an empty workspace whose buffers share one session.
func NewWorkspace(provider *suggest.Provider, session string) *Workspace {
	return &Workspace{
		provider: provider,
		session:  session,
		files:    make(map[string]*fileSource),
	}
}

// Load watches every file matching the doublestar pattern, relative
// patterns resolve against the working directory. It returns how many
// files were loaded.
func (w *Workspace) Load(pattern string) (int, error) {
	abs, err := filepath.Abs(pattern)
	if err != nil {
		return 0, fmt.Errorf("resolving pattern %s: %w", pattern, err)
	}
	if !doublestar.ValidatePathPattern(abs) {
		return 0, fmt.Errorf("invalid pattern %s", pattern)
	}
	matches, err := doublestar.FilepathGlob(abs, doublestar.WithFilesOnly())
	if err != nil {
		return 0, fmt.Errorf("matching %s: %w", pattern, err)
	}

	w.mu.Lock()
	w.patterns = append(w.patterns, abs)
	w.mu.Unlock()

	loaded := 0
	for _, path := range matches {
		if err := w.LoadFile(path); err != nil {
			log.Warnf("Skipping %s: %v", path, err)
			continue
		}
		loaded++
	}
	log.Debugf("Pattern %s matched %d files", pattern, loaded)
	return loaded, nil
}

// Matches reports whether path falls under one of the loaded patterns.
func (w *Workspace) Matches(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.patterns {
		if ok, _ := doublestar.PathMatch(p, path); ok {
			return true
		}
	}
	return false
}

// LoadFile starts watching a file, or re-reads it when already watched and
// settles the rows that changed.
func (w *Workspace) LoadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	text, err := utils.ReadTextFile(abs)
	if err != nil {
		return fmt.Errorf("reading %s: %w", abs, err)
	}
	lines := suggest.SplitLines(text)

	w.mu.Lock()
	src, ok := w.files[abs]
	if !ok {
		src = &fileSource{lines: lines}
		w.files[abs] = src
	}
	w.mu.Unlock()

	id := suggest.BufferID(abs)
	if !ok {
		w.provider.Watch(id, suggest.WatchOptions{Path: abs, Session: w.session, Source: src})
		return nil
	}
	change := src.swap(lines)
	w.provider.Settle(id, change)
	log.Debugf("Reloaded %s, rows [%d,%d) of %d", abs, change.StartRow, change.EndRow, change.TotalRows)
	return nil
}

// Remove stops watching a file.
func (w *Workspace) Remove(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	_, ok := w.files[abs]
	delete(w.files, abs)
	w.mu.Unlock()
	if !ok {
		return false
	}
	return w.provider.Unwatch(suggest.BufferID(abs))
}

// Has reports whether path is watched.
func (w *Workspace) Has(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[path]
	return ok
}

// Files lists the watched paths in order.
func (w *Workspace) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Dirs lists the directories holding watched files.
func (w *Workspace) Dirs() []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, p := range w.Files() {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}
