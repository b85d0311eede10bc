package server

import (
	"fmt"

	"github.com/bastiangx/subserve/pkg/suggest"
)

// Document is the server side copy of a client buffer. Edits are applied as
// they arrive and folded into one pending row range until the client
// reports that typing settled.
type Document struct {
	lines suggest.Lines

	pending    bool
	dirtyStart int
	dirtyEnd   int
}

// NewDocument creates a document holding text.
func NewDocument(text string) *Document {
	return &Document{lines: suggest.SplitLines(text)}
}

func (d *Document) LineCount() int {
	return d.lines.LineCount()
}

func (d *Document) LineText(row int) string {
	return d.lines.LineText(row)
}

// Pending reports whether edits arrived since the last TakeChange.
func (d *Document) Pending() bool {
	return d.pending
}

// Replace swaps rows [start, end) for lines. The range is in current rows.
func (d *Document) Replace(start, end int, lines []string) error {
	total := len(d.lines)
	if start < 0 || end < start || end > total {
		return fmt.Errorf("edit rows [%d,%d) outside document of %d rows", start, end, total)
	}

	next := make(suggest.Lines, 0, total-(end-start)+len(lines))
	next = append(next, d.lines[:start]...)
	next = append(next, lines...)
	next = append(next, d.lines[end:]...)
	d.lines = next

	newEnd := start + len(lines)
	delta := len(lines) - (end - start)
	if !d.pending {
		d.pending = true
		d.dirtyStart, d.dirtyEnd = start, newEnd
		return nil
	}

	// Carry the earlier dirty range across this edit, then widen it.
	prevEnd := d.dirtyEnd
	switch {
	case prevEnd >= end:
		prevEnd += delta
	case prevEnd > start:
		prevEnd = newEnd
	}
	d.dirtyStart = min(d.dirtyStart, start)
	d.dirtyEnd = max(prevEnd, newEnd)
	return nil
}

// TakeChange folds the pending edits into one settled change and clears
// them. Without pending edits the change is empty and only moves the
// index window to cursorRow.
func (d *Document) TakeChange(cursorRow int) suggest.Change {
	change := suggest.Change{
		StartRow:  cursorRow,
		EndRow:    cursorRow,
		TotalRows: len(d.lines),
		CursorRow: cursorRow,
	}
	if d.pending {
		change.StartRow, change.EndRow = d.dirtyStart, d.dirtyEnd
	}
	d.pending = false
	return change
}
