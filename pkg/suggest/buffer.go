package suggest

import (
	"sort"
	"strings"
)

// WatchedBuffer is an open buffer known to the provider. It owns its word
// index exclusively.
type WatchedBuffer struct {
	ID      BufferID
	Path    string
	Session string
	source  TextSource
	index   *BufferIndex
	views   map[string]struct{}
}

// WatchOptions describe a buffer when it starts being watched.
type WatchOptions struct {
	Path    string
	Session string
	// View is an optional editor view to attach right away.
	View   string
	Source TextSource
}

func newWatchedBuffer(id BufferID, opts WatchOptions) *WatchedBuffer {
	wb := &WatchedBuffer{
		ID:      id,
		Path:    opts.Path,
		Session: opts.Session,
		source:  opts.Source,
		index:   NewBufferIndex(opts.Source),
		views:   make(map[string]struct{}),
	}
	if opts.View != "" {
		wb.views[opts.View] = struct{}{}
	}
	return wb
}

// Index returns the buffer's word index.
func (wb *WatchedBuffer) Index() *BufferIndex {
	return wb.index
}

// Source returns the text source the index reads from.
func (wb *WatchedBuffer) Source() TextSource {
	return wb.source
}

// Views lists the attached view ids, sorted.
func (wb *WatchedBuffer) Views() []string {
	views := make([]string, 0, len(wb.views))
	for v := range wb.views {
		views = append(views, v)
	}
	sort.Strings(views)
	return views
}

// Lines is an in-memory TextSource, one string per row without line
// terminators. The pointer implements TextSource so edits made through it
// are seen by the index.
type Lines []string

// SplitLines splits text on \n, dropping a trailing \r from each row.
func SplitLines(text string) Lines {
	rows := strings.Split(text, "\n")
	for i, r := range rows {
		rows[i] = strings.TrimSuffix(r, "\r")
	}
	return Lines(rows)
}

func (l *Lines) LineCount() int {
	return len(*l)
}

func (l *Lines) LineText(row int) string {
	if row < 0 || row >= len(*l) {
		return ""
	}
	return (*l)[row]
}
