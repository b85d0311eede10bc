package suggest

import (
	"sort"
	"unicode"

	"github.com/bastiangx/subserve/internal/utils"
)

// Constants for scoring
const (
	firstCharMatchBonus            = 15
	adjacentMatchBonus             = 10
	separatorMatchBonus            = 12
	camelCaseMatchBonus            = 12
	unmatchedLeadingCharPenalty    = -3
	maxUnmatchedLeadingCharPenalty = -9
	unmatchedTrailingCharPenalty   = -1
)

// MatchResult is the outcome of matching a prefix against one candidate.
type MatchResult struct {
	IsMatch bool
	Score   int
	// Start is the rune index of the first matched character, -1 without
	// a match.
	Start int
}

// Matcher checks whether the characters of a prefix occur, in order but not
// necessarily contiguous, in a candidate word.
type Matcher struct {
	CaseSensitive bool
	// Unicode enables full Unicode case folding. Without it only ASCII
	// letters fold.
	Unicode bool
	// MatchEmpty lets an empty prefix match every candidate.
	MatchEmpty bool
}

// NewMatcher returns the case-insensitive matcher used for queries.
func NewMatcher(unicode bool) *Matcher {
	return &Matcher{Unicode: unicode}
}

// Match tests prefix against candidate. Among all placements of the
// prefix, the best scoring one is kept. Scores reward an anchored first
// character, runs of adjacent characters and hits on word boundaries, and
// penalise skipped leading characters and candidate length.
func (m *Matcher) Match(prefix, candidate string) MatchResult {
	noMatch := MatchResult{Start: -1}
	if prefix == "" {
		if m.MatchEmpty {
			return MatchResult{IsMatch: true, Score: unmatchedTrailingCharPenalty * len([]rune(candidate))}
		}
		return noMatch
	}

	pattern := []rune(prefix)
	runes := []rune(candidate)
	if len(pattern) > len(runes) {
		return noMatch
	}

	best := noMatch
	positions := make([]int, len(pattern))
	for start := 0; start <= len(runes)-len(pattern); start++ {
		if !m.equal(runes[start], pattern[0]) {
			continue
		}
		if !m.place(pattern, runes, start, positions) {
			// later starts cannot succeed either
			break
		}
		score := scorePositions(positions, runes, len(pattern))
		if !best.IsMatch || score > best.Score {
			best = MatchResult{IsMatch: true, Score: score, Start: start}
		}
	}
	return best
}

// Matches reports whether prefix is a subsequence of candidate.
func (m *Matcher) Matches(prefix, candidate string) bool {
	return m.Match(prefix, candidate).IsMatch
}

// place greedily assigns pattern runes to runes, starting with pattern[0]
// at start.
func (m *Matcher) place(pattern, runes []rune, start int, positions []int) bool {
	positions[0] = start
	pi := 1
	for i := start + 1; i < len(runes) && pi < len(pattern); i++ {
		if m.equal(runes[i], pattern[pi]) {
			positions[pi] = i
			pi++
		}
	}
	return pi == len(pattern)
}

func (m *Matcher) equal(a, b rune) bool {
	switch {
	case m.CaseSensitive:
		return a == b
	case m.Unicode:
		return utils.EqualFold(a, b)
	default:
		return utils.EqualFoldASCII(a, b)
	}
}

func scorePositions(positions []int, runes []rune, patternLen int) int {
	score := 0
	run := 0
	for j, pos := range positions {
		if pos == 0 {
			score += firstCharMatchBonus
		} else {
			prev, curr := runes[pos-1], runes[pos]
			if utils.IsSeparator(prev) {
				score += separatorMatchBonus
			} else if unicode.IsLower(prev) && unicode.IsUpper(curr) {
				score += camelCaseMatchBonus
			}
		}

		if j > 0 && pos == positions[j-1]+1 {
			run++
			score += adjacentMatchBonus * run
		} else {
			run = 0
		}
	}

	score += max(positions[0]*unmatchedLeadingCharPenalty, maxUnmatchedLeadingCharPenalty)
	score += (len(runes) - patternLen) * unmatchedTrailingCharPenalty
	return score
}

// SortMatches orders matches by score, highest first. Equal scores go to
// the earlier match start, then to text. The leading penalty is capped, so
// the start still has to separate late matches.
func SortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Text < b.Text
	})
}
