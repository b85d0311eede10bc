package suggest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJS = `var quicksort = function () {
  var sort = function(items) {
    if (items.length <= 1) return items;
    var pivot = items.shift(), current, left = [], right = [];
    while(items.length > 0) {
      current = items.shift();
      current < pivot ? left.push(current) : right.push(current);
    }
    return sort(left).concat(pivot).concat(sort(right));
  };

  return sort(Array.apply(this, arguments));
};
`

var wideOpen = IndexOptions{MaxRangeLines: 3000}

func newTestIndex(text string, opts IndexOptions) (*BufferIndex, *Lines) {
	lines := SplitLines(text)
	bi := NewBufferIndex(&lines)
	bi.Reindex(0, opts)
	return bi, &lines
}

// countWords tokenizes every row in the window, the reference for the index.
func countWords(lines *Lines, window Range, tok Tokenizer) map[string]int {
	counts := make(map[string]int)
	for row := window.Start; row < window.End; row++ {
		for _, w := range tok.Words(nil, lines.LineText(row)) {
			counts[w]++
		}
	}
	return counts
}

func entryMap(bi *BufferIndex) map[string]int {
	m := make(map[string]int)
	for _, e := range bi.Entries() {
		m[e.Text] = e.Count
	}
	return m
}

func TestIndexBuild(t *testing.T) {
	bi, lines := newTestIndex(sampleJS, wideOpen)

	assert.Equal(t, countWords(lines, Range{0, lines.LineCount()}, Tokenizer{}), entryMap(bi))
	assert.Equal(t, 1, bi.Count("quicksort"))
	assert.Equal(t, 6, bi.Count("items"))
	assert.Equal(t, 0, bi.Count("missing"))
	assert.Equal(t, len(bi.Entries()), bi.Len())
	assert.Equal(t, Range{0, lines.LineCount()}, bi.Window())
}

func TestIndexEntriesOrdered(t *testing.T) {
	bi, _ := newTestIndex("zeta alpha mid alpha", wideOpen)
	assert.Equal(t, []WordEntry{{"alpha", 2}, {"mid", 1}, {"zeta", 1}}, bi.Entries())
}

func TestReindexIdempotent(t *testing.T) {
	bi, _ := newTestIndex(sampleJS, wideOpen)
	before := bi.Entries()
	bi.Reindex(0, wideOpen)
	bi.Reindex(5, wideOpen)
	assert.Equal(t, before, bi.Entries())
}

func TestUpdateInsertDeleteRoundTrip(t *testing.T) {
	bi, lines := newTestIndex(sampleJS, wideOpen)
	before := bi.Entries()

	// insert a row above the body
	*lines = append((*lines)[:1], append(Lines{"function aNewFunction(){};"}, (*lines)[1:]...)...)
	bi.Update(Change{StartRow: 1, EndRow: 2, TotalRows: lines.LineCount(), CursorRow: 1}, wideOpen)
	assert.Equal(t, 1, bi.Count("aNewFunction"))
	assert.Equal(t, 3, bi.Count("function"))

	// delete it again
	*lines = append((*lines)[:1], (*lines)[2:]...)
	bi.Update(Change{StartRow: 1, EndRow: 1, TotalRows: lines.LineCount(), CursorRow: 1}, wideOpen)
	assert.Equal(t, before, bi.Entries())
}

func TestUpdateShiftsRows(t *testing.T) {
	bi, lines := newTestIndex("alpha\nbeta\ngamma", wideOpen)

	// two rows inserted at the top
	*lines = Lines{"one", "two", "alpha", "beta", "gamma"}
	bi.Update(Change{StartRow: 0, EndRow: 2, TotalRows: 5, CursorRow: 0}, wideOpen)
	assert.Equal(t, countWords(lines, Range{0, 5}, Tokenizer{}), entryMap(bi))

	// editing the shifted row retires the old words of that row only
	(*lines)[3] = "delta"
	bi.Update(Change{StartRow: 3, EndRow: 4, TotalRows: 5, CursorRow: 3}, wideOpen)
	assert.Equal(t, 0, bi.Count("beta"))
	assert.Equal(t, 1, bi.Count("delta"))
	assert.Equal(t, 1, bi.Count("gamma"))
	assert.Equal(t, countWords(lines, Range{0, 5}, Tokenizer{}), entryMap(bi))
}

func TestUpdateMultiRowReplace(t *testing.T) {
	bi, lines := newTestIndex("a1\na2\na3\na4\na5", wideOpen)

	// rows 1..3 collapse into one
	*lines = Lines{"a1", "merged", "a5"}
	bi.Update(Change{StartRow: 1, EndRow: 2, TotalRows: 3, CursorRow: 1}, wideOpen)
	assert.Equal(t, map[string]int{"a1": 1, "merged": 1, "a5": 1}, entryMap(bi))
}

func TestIndexWindow(t *testing.T) {
	text := ""
	for i := 0; i < 10; i++ {
		text += fmt.Sprintf("w%d\n", i)
	}
	opts := IndexOptions{MaxRangeLines: 2}
	lines := SplitLines(text)
	bi := NewBufferIndex(&lines)

	bi.Reindex(5, opts)
	assert.Equal(t, Range{3, 7}, bi.Window())
	assert.Equal(t, 0, bi.Count("w0"))
	assert.Equal(t, 1, bi.Count("w3"))
	assert.Equal(t, 1, bi.Count("w6"))
	assert.Equal(t, 0, bi.Count("w7"))

	// moving the cursor moves the window
	bi.Update(Change{StartRow: 0, EndRow: 0, TotalRows: lines.LineCount(), CursorRow: 0}, opts)
	assert.Equal(t, Range{0, 4}, bi.Window())
	assert.Equal(t, map[string]int{"w0": 1, "w1": 1, "w2": 1, "w3": 1}, entryMap(bi))
}

func TestIndexModeSwitch(t *testing.T) {
	bi, _ := newTestIndex("somēthingNew", wideOpen)
	assert.Equal(t, map[string]int{"som": 1, "thingNew": 1}, entryMap(bi))
	assert.False(t, bi.Unicode())

	bi.Reindex(0, IndexOptions{MaxRangeLines: 3000, Unicode: true})
	assert.True(t, bi.Unicode())
	assert.Equal(t, map[string]int{"somēthingNew": 1}, entryMap(bi))
}

func TestWordsMatching(t *testing.T) {
	bi, _ := newTestIndex("qu quicksort queue x_quota ab", wideOpen)
	m := NewMatcher(false)

	all := bi.WordsMatching("qu", m, 0, 0)
	texts := make([]string, len(all))
	for i, mt := range all {
		texts[i] = mt.Text
	}
	require.Len(t, texts, 4)
	assert.Equal(t, "qu", texts[0])
	assert.ElementsMatch(t, []string{"qu", "quicksort", "queue", "x_quota"}, texts)

	// min length applies to the prefix and to every word
	assert.Nil(t, bi.WordsMatching("qu", m, 3, 0))
	long := bi.WordsMatching("que", m, 3, 0)
	require.Len(t, long, 1)
	assert.Equal(t, "queue", long[0].Text)

	assert.Len(t, bi.WordsMatching("qu", m, 0, 2), 2)
}

func TestIndexReset(t *testing.T) {
	bi, _ := newTestIndex(sampleJS, wideOpen)
	bi.Reset()
	assert.Equal(t, 0, bi.Len())
	assert.Empty(t, bi.Entries())
	bi.Reindex(0, wideOpen)
	assert.Equal(t, 1, bi.Count("quicksort"))
}
