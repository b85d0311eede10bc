package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcherSubsequence(t *testing.T) {
	m := NewMatcher(false)

	testCases := []struct {
		prefix      string
		candidate   string
		match       bool
		description string
	}{
		{"qu", "quicksort", true, "Leading run"},
		{"qsrt", "quicksort", true, "Scattered"},
		{"uq", "quicksort", false, "Wrong order"},
		{"ANEW", "aNewFunction", true, "Case insensitive"},
		{"anf", "aNewFunction", true, "Camel humps"},
		{"quicksorts", "quicksort", false, "Longer than candidate"},
		{"x", "quicksort", false, "Missing rune"},
		{"", "quicksort", false, "Empty prefix"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			res := m.Match(tc.prefix, tc.candidate)
			assert.Equal(t, tc.match, res.IsMatch)
			if !tc.match {
				assert.Equal(t, -1, res.Start)
			}
		})
	}
}

func TestMatcherMatchEmpty(t *testing.T) {
	m := &Matcher{MatchEmpty: true}
	assert.True(t, m.Matches("", "anything"))
}

func TestMatcherCaseSensitive(t *testing.T) {
	m := &Matcher{CaseSensitive: true}
	assert.False(t, m.Matches("ANEW", "aNewFunction"))
	assert.True(t, m.Matches("aNF", "aNewFunction"))
}

func TestMatcherUnicodeFolding(t *testing.T) {
	assert.True(t, NewMatcher(true).Matches("É", "écrire"))
	assert.False(t, NewMatcher(false).Matches("É", "écrire"))
	assert.True(t, NewMatcher(false).Matches("é", "écrire"))
}

func TestMatcherScoreOrder(t *testing.T) {
	m := NewMatcher(false)
	var matches []Match
	for _, word := range []string{"subsort", "sorted", "sort"} {
		res := m.Match("sort", word)
		assert.True(t, res.IsMatch, word)
		matches = append(matches, Match{WordEntry: WordEntry{Text: word, Count: 1}, Score: res.Score})
	}
	SortMatches(matches)

	texts := make([]string, len(matches))
	for i, mt := range matches {
		texts[i] = mt.Text
	}
	assert.Equal(t, []string{"sort", "sorted", "subsort"}, texts)
}

func TestMatcherKeepsBestStart(t *testing.T) {
	// the second "s" gives a tighter run than the first one
	res := NewMatcher(false).Match("sort", "subsort")
	assert.Equal(t, 3, res.Start)
}

func TestSortMatchesPrefersEarlierStart(t *testing.T) {
	m := NewMatcher(false)
	var matches []Match
	for _, word := range []string{"abcdefghxy", "abcdxyefgh"} {
		res := m.Match("xy", word)
		assert.True(t, res.IsMatch, word)
		matches = append(matches, Match{WordEntry: WordEntry{Text: word}, Score: res.Score, Start: res.Start})
	}
	// both starts are past the capped leading penalty
	assert.Equal(t, matches[0].Score, matches[1].Score)

	SortMatches(matches)
	assert.Equal(t, "abcdxyefgh", matches[0].Text)
	assert.Equal(t, 4, matches[0].Start)
	assert.Equal(t, "abcdefghxy", matches[1].Text)
}

func TestSortMatchesTies(t *testing.T) {
	matches := []Match{
		{WordEntry: WordEntry{Text: "beta"}, Score: 5},
		{WordEntry: WordEntry{Text: "alpha"}, Score: 5},
		{WordEntry: WordEntry{Text: "gamma"}, Score: 9},
	}
	SortMatches(matches)
	assert.Equal(t, "gamma", matches[0].Text)
	assert.Equal(t, "alpha", matches[1].Text)
	assert.Equal(t, "beta", matches[2].Text)
}
