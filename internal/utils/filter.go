package utils

// SuggestionFilter drops repeated suggestion texts, keeping the first one
// seen. Comparison is exact: "Foo" and "foo" are different suggestions.
// Not safe for concurrent use.
type SuggestionFilter struct {
	seen map[string]struct{}
}

// NewSuggestionFilter creates a new filter sized for about n texts.
func NewSuggestionFilter(n int) *SuggestionFilter {
	return &SuggestionFilter{seen: make(map[string]struct{}, n)}
}

// ShouldInclude checks if a text should be included in results (not a duplicate)
// Returns true the first time a text is offered, false afterwards.
func (f *SuggestionFilter) ShouldInclude(text string) bool {
	if _, dup := f.seen[text]; dup {
		return false
	}
	f.seen[text] = struct{}{}
	return true
}
