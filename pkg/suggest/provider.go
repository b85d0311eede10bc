package suggest

import (
	"context"
	"sort"
	"sync"

	"github.com/bastiangx/subserve/internal/utils"
	"github.com/charmbracelet/log"
)

// Provider answers suggestion queries over every watched buffer. It keeps
// the buffer arena keyed by BufferID and merges index words with the
// scope-specific extras.
type Provider struct {
	mu      sync.RWMutex
	buffers map[BufferID]*WatchedBuffer
	cursors map[BufferID]int
	extras  ExtraSource
	opts    Options
}

// NewProvider creates a provider. extras may be nil.
func NewProvider(opts Options, extras ExtraSource) *Provider {
	return &Provider{
		buffers: make(map[BufferID]*WatchedBuffer),
		cursors: make(map[BufferID]int),
		extras:  extras,
		opts:    opts,
	}
}

func (p *Provider) indexOptions() IndexOptions {
	return IndexOptions{
		MaxRangeLines: p.opts.MaxIndexRangeLines,
		Unicode:       p.opts.EnableExtendedUnicodeSupport,
	}
}

// Options returns the current configuration values.
func (p *Provider) Options() Options {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opts
}

// SetOptions replaces the configuration values. Buffers are re-indexed
// when a value that shapes indexing changed.
func (p *Provider) SetOptions(opts Options) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.opts
	p.opts = opts
	if old.EnableExtendedUnicodeSupport == opts.EnableExtendedUnicodeSupport &&
		old.MaxIndexRangeLines == opts.MaxIndexRangeLines {
		return
	}
	for id, wb := range p.buffers {
		p.reindexLocked(wb, p.cursors[id])
	}
	log.Debugf("Options changed, re-indexed %d buffers", len(p.buffers))
}

// SetExtraSource replaces the scope-specific suggestion source.
func (p *Provider) SetExtraSource(extras ExtraSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extras = extras
}

// Watch starts tracking a buffer and indexes it around row 0. Watching an
// id that is already tracked re-associates it: the view is attached, the
// metadata refreshed, and the existing index kept.
func (p *Provider) Watch(id BufferID, opts WatchOptions) *WatchedBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if wb, ok := p.buffers[id]; ok {
		if opts.View != "" {
			wb.views[opts.View] = struct{}{}
		}
		if opts.Path != "" {
			wb.Path = opts.Path
		}
		return wb
	}
	if opts.Source == nil {
		empty := Lines{}
		opts.Source = &empty
	}

	wb := newWatchedBuffer(id, opts)
	p.buffers[id] = wb
	p.cursors[id] = 0
	p.reindexLocked(wb, 0)
	log.Debugf("Watching buffer %s (%s), %d words", id, wb.Path, wb.index.Len())
	return wb
}

// Unwatch forgets a buffer and its index.
func (p *Provider) Unwatch(id BufferID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unwatchLocked(id)
}

func (p *Provider) unwatchLocked(id BufferID) bool {
	if _, ok := p.buffers[id]; !ok {
		return false
	}
	delete(p.buffers, id)
	delete(p.cursors, id)
	log.Debugf("Unwatched buffer %s", id)
	return true
}

// Rename records a new path for a buffer. The index is untouched.
func (p *Provider) Rename(id BufferID, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	wb, ok := p.buffers[id]
	if !ok {
		return false
	}
	log.Debugf("Buffer %s renamed: %s -> %s", id, wb.Path, path)
	wb.Path = path
	return true
}

// AttachView associates an editor view with a buffer.
func (p *Provider) AttachView(id BufferID, view string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	wb, ok := p.buffers[id]
	if !ok {
		return false
	}
	wb.views[view] = struct{}{}
	return true
}

// DetachView removes a view from a buffer. When the last view goes away the
// buffer is unwatched; the return value reports that.
func (p *Provider) DetachView(id BufferID, view string) (closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wb, ok := p.buffers[id]
	if !ok {
		return false
	}
	delete(wb.views, view)
	if len(wb.views) > 0 {
		return false
	}
	return p.unwatchLocked(id)
}

// Buffer looks up a watched buffer.
func (p *Provider) Buffer(id BufferID) (*WatchedBuffer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	wb, ok := p.buffers[id]
	return wb, ok
}

// Buffers lists the watched buffer ids in order.
func (p *Provider) Buffers() []BufferID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedIDsLocked()
}

func (p *Provider) sortedIDsLocked() []BufferID {
	ids := make([]BufferID, 0, len(p.buffers))
	for id := range p.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Settle delivers a settled change for a buffer. Unknown ids are ignored.
func (p *Provider) Settle(id BufferID, change Change) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	wb, ok := p.buffers[id]
	if !ok {
		log.Debugf("Settle for unknown buffer %s ignored", id)
		return false
	}
	p.cursors[id] = change.CursorRow

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Updating index of %s failed: %v. Rebuilding.", id, r)
			wb.index.Reset()
			p.reindexLocked(wb, change.CursorRow)
		}
	}()
	wb.index.Update(change, p.indexOptions())
	return true
}

// Reindex re-synchronises a buffer's index around cursorRow.
func (p *Provider) Reindex(id BufferID, cursorRow int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	wb, ok := p.buffers[id]
	if !ok {
		return false
	}
	p.cursors[id] = cursorRow
	p.reindexLocked(wb, cursorRow)
	return true
}

func (p *Provider) reindexLocked(wb *WatchedBuffer, cursorRow int) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Indexing %s failed: %v", wb.ID, r)
			wb.index.Reset()
		}
	}()
	wb.index.Reindex(cursorRow, p.indexOptions())
}

// GetSuggestionsAsync runs GetSuggestions in the background. The channel
// receives exactly one value and is then closed.
func (p *Provider) GetSuggestionsAsync(ctx context.Context, q Query) <-chan []Suggestion {
	resultChan := make(chan []Suggestion, 1)
	go func() {
		defer close(resultChan)
		resultChan <- p.GetSuggestions(ctx, q)
	}()
	return resultChan
}

// GetSuggestions returns the suggestions for a cursor context: scope extras
// first, then words from the buffer index (and, if enabled, the other
// buffers of the same session) ordered by match score. Texts are unique.
// It never fails; any internal error yields fewer suggestions.
func (p *Provider) GetSuggestions(ctx context.Context, q Query) (result []Suggestion) {
	result = []Suggestion{}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Query on %s for %q failed: %v", q.Buffer, q.Prefix, r)
			result = []Suggestion{}
		}
	}()

	p.mu.RLock()
	defer p.mu.RUnlock()

	opts := p.opts
	if q.Prefix == "" || (opts.MinimumWordLength > 0 && utils.RuneLen(q.Prefix) < opts.MinimumWordLength) {
		return result
	}
	if ctx.Err() != nil {
		return result
	}
	buf, ok := p.buffers[q.Buffer]
	if !ok {
		log.Debugf("Query for unknown buffer %s", q.Buffer)
		return result
	}

	matcher := NewMatcher(opts.EnableExtendedUnicodeSupport)
	targets := p.targetsLocked(buf, opts)

	var extras []Suggestion
	wordType := ""
	if p.extras != nil {
		guard("scope extras", func() {
			extras = p.extras.ExtraSuggestions(q.Scope, q.Prefix, matcher)
		})
		guard("word type", func() {
			wordType = p.extras.WordType(q.Scope)
		})
	}

	var excluded map[string]bool
	guard("cursor words", func() {
		excluded = excludedWords(buf, targets, q.Cursors)
	})

	var words []Match
	for _, wb := range targets {
		if ctx.Err() != nil {
			return []Suggestion{}
		}
		guard("index "+string(wb.ID), func() {
			words = append(words, bufferMatches(wb, q.Prefix, matcher, opts, excluded)...)
		})
	}
	SortMatches(words)

	filter := utils.NewSuggestionFilter(len(extras) + len(words))
	for _, s := range extras {
		if s.Text != "" && filter.ShouldInclude(s.Text) {
			result = append(result, s)
		}
	}
	for _, m := range words {
		if filter.ShouldInclude(m.Text) {
			result = append(result, Suggestion{Text: m.Text, Type: wordType})
		}
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result
}

// targetsLocked returns the buffer owning the cursor followed by the other
// buffers of its session when cross-buffer completion is on.
func (p *Provider) targetsLocked(buf *WatchedBuffer, opts Options) []*WatchedBuffer {
	targets := []*WatchedBuffer{buf}
	if !opts.IncludeCompletionsFromAllBuffers {
		return targets
	}
	for _, id := range p.sortedIDsLocked() {
		other := p.buffers[id]
		if other != buf && other.Session == buf.Session {
			targets = append(targets, other)
		}
	}
	return targets
}

func bufferMatches(wb *WatchedBuffer, prefix string, matcher *Matcher, opts Options, excluded map[string]bool) []Match {
	matches := wb.index.WordsMatching(prefix, matcher, opts.MinimumWordLength, 0)
	kept := matches[:0]
	for _, m := range matches {
		if excluded[m.Text] {
			continue
		}
		kept = append(kept, m)
		if opts.MaxResultsPerBuffer > 0 && len(kept) == opts.MaxResultsPerBuffer {
			break
		}
	}
	return kept
}

// excludedWords finds the words under the cursors that must not be offered.
// A word typed at the cursors is only useful as a suggestion when another
// instance of it exists somewhere in the queried buffers, so a word is
// excluded when its occurrence count does not exceed the number of cursors
// sitting on it.
func excludedWords(buf *WatchedBuffer, targets []*WatchedBuffer, cursors []Position) map[string]bool {
	if len(cursors) == 0 {
		return nil
	}
	tok := Tokenizer{Unicode: buf.index.Unicode()}
	underCursor := make(map[string]int, len(cursors))
	for _, c := range cursors {
		if word, ok := tok.WordAt(buf.source.LineText(c.Row), c.Column); ok {
			underCursor[word]++
		}
	}

	excluded := make(map[string]bool, len(underCursor))
	for word, n := range underCursor {
		total := 0
		for _, wb := range targets {
			total += wb.index.Count(word)
		}
		if total <= n {
			excluded[word] = true
		}
	}
	return excluded
}

// guard runs fn, turning a panic into a logged, empty contribution.
func guard(source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Suggestion source %s failed: %v", source, r)
		}
	}()
	fn()
}

// Stats returns counters about the watched buffers.
func (p *Provider) Stats() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	words, rows := 0, 0
	for _, wb := range p.buffers {
		words += wb.index.Len()
		rows += wb.index.Window().Len()
	}
	return map[string]int{
		"buffers":     len(p.buffers),
		"words":       words,
		"indexedRows": rows,
	}
}
