package scope

import (
	"sort"

	"github.com/bastiangx/subserve/pkg/config"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/charmbracelet/log"
)

// BuiltinType is the suggestion type of legacy completion entries.
const BuiltinType = "builtin"

// SymbolType is a named kind of suggestion. A symbol with a Selector types
// the buffer words offered in scopes it matches; one with Suggestions
// contributes literal entries.
type SymbolType struct {
	Name        string
	Selector    *Selector
	Suggestions []Entry
}

// Rule binds symbols and legacy completions to a scope selector.
type Rule struct {
	Selector    Selector
	Symbols     []SymbolType
	Completions []string

	order int
}

func (r *Rule) hasLiterals() bool {
	for _, sym := range r.Symbols {
		if len(sym.Suggestions) > 0 {
			return true
		}
	}
	return false
}

// Resolver picks the rules that apply to a scope descriptor. It is
// immutable once built and safe for concurrent use.
type Resolver struct {
	rules []Rule
}

// NewResolver keeps rules in the given order; later rules win ties.
func NewResolver(rules ...Rule) *Resolver {
	r := &Resolver{rules: make([]Rule, len(rules))}
	for i, rule := range rules {
		rule.order = i
		r.rules[i] = rule
	}
	return r
}

// FromConfig builds a resolver from the [[scope]] tables. Rules and symbols
// with malformed selectors are skipped with a warning.
func FromConfig(scopes []config.ScopeConfig) *Resolver {
	rules := make([]Rule, 0, len(scopes))
	for _, sc := range scopes {
		sel, err := ParseSelector(sc.Selector)
		if err != nil {
			log.Warnf("Skipping scope rule: %v", err)
			continue
		}
		rule := Rule{Selector: sel}
		for _, sym := range sc.Symbols {
			if sym.Type == "" {
				log.Warnf("Skipping symbol without type in scope %q", sc.Selector)
				continue
			}
			st := SymbolType{Name: sym.Type, Suggestions: ParseEntries(sym.Suggestions)}
			if sym.Selector != "" {
				symSel, err := ParseSelector(sym.Selector)
				if err != nil {
					log.Warnf("Ignoring selector of symbol %q: %v", sym.Type, err)
				} else {
					st.Selector = &symSel
				}
			}
			rule.Symbols = append(rule.Symbols, st)
		}
		for _, v := range sc.Completions {
			// Legacy lists only take plain strings.
			if s, ok := v.(string); ok && s != "" {
				rule.Completions = append(rule.Completions, s)
			}
		}
		rules = append(rules, rule)
	}
	log.Debugf("Loaded %d scope rules", len(rules))
	return NewResolver(rules...)
}

// Len returns the number of rules.
func (r *Resolver) Len() int {
	return len(r.rules)
}

// best returns the most specific rule matching descriptor among those
// accepted by keep. A later rule wins a tie.
func (r *Resolver) best(descriptor []string, keep func(*Rule) bool) *Rule {
	var (
		found *Rule
		spec  = -1
	)
	for i := range r.rules {
		rule := &r.rules[i]
		if !keep(rule) {
			continue
		}
		s, ok := rule.Selector.Match(descriptor)
		if !ok {
			continue
		}
		if s >= spec {
			found, spec = rule, s
		}
	}
	return found
}

type scored struct {
	suggest.Suggestion
	score int
}

// ExtraSuggestions returns the literal suggestions that apply to scope and
// match prefix: symbol entries of the most specific rule carrying any,
// followed by the legacy completions of the most specific rule carrying
// those. Each group is ordered by score, keeping declaration order on ties.
func (r *Resolver) ExtraSuggestions(scope suggest.ScopeDescriptor, prefix string, matcher *suggest.Matcher) []suggest.Suggestion {
	if len(r.rules) == 0 {
		return nil
	}
	var out []suggest.Suggestion

	if rule := r.best(scope, (*Rule).hasLiterals); rule != nil {
		var group []scored
		for _, sym := range rule.Symbols {
			for _, e := range sym.Suggestions {
				res := matcher.Match(prefix, e.Text)
				if !res.IsMatch {
					continue
				}
				typ := e.Type
				if typ == "" {
					typ = sym.Name
				}
				group = append(group, scored{
					Suggestion: suggest.Suggestion{Text: e.Text, Type: typ, RightLabel: e.RightLabel, Description: e.Description},
					score:      res.Score,
				})
			}
		}
		out = appendSorted(out, group)
	}

	hasCompletions := func(rule *Rule) bool { return len(rule.Completions) > 0 }
	if rule := r.best(scope, hasCompletions); rule != nil {
		var group []scored
		for _, text := range rule.Completions {
			if res := matcher.Match(prefix, text); res.IsMatch {
				group = append(group, scored{
					Suggestion: suggest.Suggestion{Text: text, Type: BuiltinType},
					score:      res.Score,
				})
			}
		}
		out = appendSorted(out, group)
	}
	return out
}

func appendSorted(out []suggest.Suggestion, group []scored) []suggest.Suggestion {
	sort.SliceStable(group, func(i, j int) bool { return group[i].score > group[j].score })
	for _, s := range group {
		out = append(out, s.Suggestion)
	}
	return out
}

// WordType returns the type given to buffer words in scope: the first
// symbol, in the most specific rule offering one, whose own selector
// matches scope. Empty when none applies.
func (r *Resolver) WordType(scope suggest.ScopeDescriptor) string {
	name := ""
	hasTyped := func(rule *Rule) bool {
		for _, sym := range rule.Symbols {
			if sym.Selector == nil {
				continue
			}
			if _, ok := sym.Selector.Match(scope); ok {
				return true
			}
		}
		return false
	}
	rule := r.best(scope, hasTyped)
	if rule == nil {
		return name
	}
	for _, sym := range rule.Symbols {
		if sym.Selector == nil {
			continue
		}
		if _, ok := sym.Selector.Match(scope); ok {
			name = sym.Name
			break
		}
	}
	return name
}

var _ suggest.ExtraSource = (*Resolver)(nil)
