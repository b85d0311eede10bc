package suggest

import (
	"github.com/bastiangx/subserve/internal/utils"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// TextSource gives read access to the rows of a buffer. The buffer itself
// is owned by the host.
type TextSource interface {
	LineCount() int
	LineText(row int) string
}

// Change is a settled edit notification. Rows are post-edit and the range
// [StartRow, EndRow) covers every row the edit burst touched.
type Change struct {
	StartRow  int
	EndRow    int
	TotalRows int
	CursorRow int
}

// IndexOptions are the configuration values that shape indexing.
type IndexOptions struct {
	MaxRangeLines int
	Unicode       bool
}

type indexedRow struct {
	hash  uint64
	words []string
}

// BufferIndex keeps a word → occurrence count structure for the rows of one
// buffer that fall inside the clamped window around the cursor.
type BufferIndex struct {
	source    TextSource
	words     *patricia.Trie
	distinct  int
	rows      map[int]indexedRow
	window    Range
	totalRows int
	tokenizer Tokenizer
	scratch   []string
}

// NewBufferIndex creates an empty index reading rows from source. Nothing
// is tokenized until Reindex or Update is called.
func NewBufferIndex(source TextSource) *BufferIndex {
	return &BufferIndex{
		source: source,
		words:  patricia.NewTrie(),
		rows:   make(map[int]indexedRow),
	}
}

// Reindex synchronises every row of the window around cursorRow with the
// source. Rows whose text is unchanged are left alone, so calling it twice
// yields the same entries.
func (bi *BufferIndex) Reindex(cursorRow int, opts IndexOptions) {
	bi.applyMode(opts)
	bi.totalRows = bi.source.LineCount()
	bi.sync(cursorRow, opts, Range{Start: 0, End: bi.totalRows})
}

// Update applies a settled change. Cached rows below the edit are moved by
// the row delta, rows of the edit are retired and re-read, and the window
// is moved to the cursor.
func (bi *BufferIndex) Update(change Change, opts IndexOptions) {
	if bi.applyMode(opts) {
		bi.totalRows = change.TotalRows
		bi.sync(change.CursorRow, opts, Range{Start: 0, End: change.TotalRows})
		return
	}

	start := max(change.StartRow, 0)
	end := max(change.EndRow, start)
	delta := change.TotalRows - bi.totalRows
	oldEnd := max(end-delta, start)

	if delta != 0 || oldEnd > start {
		shifted := make(map[int]indexedRow, len(bi.rows))
		for row, entry := range bi.rows {
			switch {
			case row < start:
				shifted[row] = entry
			case row < oldEnd:
				bi.retire(entry)
			default:
				shifted[row+delta] = entry
			}
		}
		bi.rows = shifted
	}
	bi.totalRows = change.TotalRows

	bi.sync(change.CursorRow, opts, Range{Start: start, End: end})
}

// sync moves the window to cursorRow. Rows leaving the window are retired.
// Rows inside dirty, and rows entering the window, are re-read; a row whose
// hash did not change keeps its words.
func (bi *BufferIndex) sync(cursorRow int, opts IndexOptions, dirty Range) {
	window := ClampedRange(opts.MaxRangeLines, cursorRow, bi.totalRows).Clip(bi.totalRows)

	for row, entry := range bi.rows {
		if !window.Contains(row) {
			bi.retire(entry)
			delete(bi.rows, row)
		}
	}

	read := 0
	for row := window.Start; row < window.End; row++ {
		cached, ok := bi.rows[row]
		if ok && !dirty.Contains(row) {
			continue
		}
		text := bi.source.LineText(row)
		hash := xxhash.Sum64String(text)
		if ok && cached.hash == hash {
			continue
		}
		if ok {
			bi.retire(cached)
		}
		bi.scratch = bi.tokenizer.Words(bi.scratch[:0], text)
		words := make([]string, len(bi.scratch))
		copy(words, bi.scratch)
		for _, w := range words {
			bi.add(w)
		}
		bi.rows[row] = indexedRow{hash: hash, words: words}
		read++
	}
	bi.window = window

	log.Debugf("index window [%d,%d) of %d rows, %d rows read, %d words", window.Start, window.End, bi.totalRows, read, bi.distinct)
}

// applyMode switches tokenization mode, dropping every entry when it
// changes. Returns true if the index was cleared.
func (bi *BufferIndex) applyMode(opts IndexOptions) bool {
	if bi.tokenizer.Unicode == opts.Unicode {
		return false
	}
	bi.Reset()
	bi.tokenizer.Unicode = opts.Unicode
	return true
}

// Reset drops every entry.
func (bi *BufferIndex) Reset() {
	bi.words = patricia.NewTrie()
	bi.distinct = 0
	bi.rows = make(map[int]indexedRow)
	bi.window = Range{}
}

func (bi *BufferIndex) add(word string) {
	key := patricia.Prefix(word)
	if item := bi.words.Get(key); item != nil {
		bi.words.Set(key, item.(int)+1)
		return
	}
	bi.words.Insert(key, 1)
	bi.distinct++
}

func (bi *BufferIndex) retire(entry indexedRow) {
	for _, w := range entry.words {
		bi.remove(w)
	}
}

func (bi *BufferIndex) remove(word string) {
	key := patricia.Prefix(word)
	item := bi.words.Get(key)
	if item == nil {
		log.Errorf("index: retiring untracked word %q", word)
		return
	}
	if count := item.(int) - 1; count > 0 {
		bi.words.Set(key, count)
		return
	}
	bi.words.Delete(key)
	bi.distinct--
}

// Count returns how often word occurs in the indexed rows.
func (bi *BufferIndex) Count(word string) int {
	if item := bi.words.Get(patricia.Prefix(word)); item != nil {
		return item.(int)
	}
	return 0
}

// Len is the number of distinct words tracked.
func (bi *BufferIndex) Len() int {
	return bi.distinct
}

// Window returns the rows currently covered.
func (bi *BufferIndex) Window() Range {
	return bi.window
}

// Unicode reports whether the index was built in extended unicode mode.
func (bi *BufferIndex) Unicode() bool {
	return bi.tokenizer.Unicode
}

// Entries lists every tracked word in lexical byte order.
func (bi *BufferIndex) Entries() []WordEntry {
	entries := make([]WordEntry, 0, bi.distinct)
	err := bi.words.Visit(func(p patricia.Prefix, item patricia.Item) error {
		entries = append(entries, WordEntry{Text: string(p), Count: item.(int)})
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting index trie: %v", err)
	}
	return entries
}

// WordsMatching runs matcher against every tracked word. Words and prefixes
// shorter than minWordLength runes are skipped, 0 disables the check.
// Results are ordered by SortMatches and capped at limit when limit > 0.
func (bi *BufferIndex) WordsMatching(prefix string, matcher *Matcher, minWordLength, limit int) []Match {
	if minWordLength > 0 && utils.RuneLen(prefix) < minWordLength {
		return nil
	}

	var matches []Match
	err := bi.words.Visit(func(p patricia.Prefix, item patricia.Item) error {
		word := string(p)
		if minWordLength > 0 && utils.RuneLen(word) < minWordLength {
			return nil
		}
		count, ok := item.(int)
		if !ok {
			log.Errorf("Unknown item type: %T for word %s", item, p)
			return nil
		}
		if res := matcher.Match(prefix, word); res.IsMatch {
			matches = append(matches, Match{WordEntry: WordEntry{Text: word, Count: count}, Score: res.Score, Start: res.Start})
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting index trie: %v", err)
		return nil
	}

	SortMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
