// Package suggest is the core, keeping a live word index per open buffer and
// answering subsequence queries against it merged with scope-specific lists.
package suggest

import "strings"

// BufferID identifies a watched buffer. It never changes for the lifetime of
// the buffer, renames only touch metadata.
type BufferID string

// Position is a zero-based row/column pair. Column counts runes.
type Position struct {
	Row    int `msgpack:"r" json:"row"`
	Column int `msgpack:"c" json:"column"`
}

// ScopeDescriptor is the stack of scope names at a cursor, outermost first,
// e.g. ["source.js", "comment.line.double-slash.js"].
type ScopeDescriptor []string

func (sd ScopeDescriptor) String() string {
	return strings.Join(sd, " ")
}

// Suggestion is the output unit of a query.
type Suggestion struct {
	Text       string `msgpack:"t" json:"text"`
	Type       string `msgpack:"y" json:"type"`
	RightLabel string `msgpack:"r,omitempty" json:"rightLabel,omitempty"`

	// Description is only set on configured symbol entries.
	Description string `msgpack:"d,omitempty" json:"description,omitempty"`
}

// WordEntry is a distinct word tracked by a buffer index.
type WordEntry struct {
	Text  string
	Count int
}

// Match pairs an indexed word with its matcher score. Start is the rune
// index where the match begins.
type Match struct {
	WordEntry
	Score int
	Start int
}

// Query is the per-request cursor context.
type Query struct {
	Buffer  BufferID
	Cursors []Position
	Scope   ScopeDescriptor
	Prefix  string
	// Limit caps the merged result, 0 means no cap.
	Limit int
}

// Options carries the externally owned configuration values. A copy is
// taken on every update and query.
type Options struct {
	MinimumWordLength                int
	IncludeCompletionsFromAllBuffers bool
	EnableExtendedUnicodeSupport     bool
	// MaxIndexRangeLines is the number of rows indexed on each side of the
	// cursor in buffers longer than it. See ClampedRange.
	MaxIndexRangeLines int
	// MaxResultsPerBuffer caps index matches taken from a single buffer,
	// 0 means no cap.
	MaxResultsPerBuffer int
}

// DefaultOptions mirrors the editor defaults.
func DefaultOptions() Options {
	return Options{
		MinimumWordLength:   3,
		MaxIndexRangeLines:  3000,
		MaxResultsPerBuffer: 20,
	}
}

// ExtraSource supplies scope-dependent suggestions that are not derived from
// buffer text, and the type tag given to buffer words in that scope.
type ExtraSource interface {
	ExtraSuggestions(scope ScopeDescriptor, prefix string, matcher *Matcher) []Suggestion
	WordType(scope ScopeDescriptor) string
}
