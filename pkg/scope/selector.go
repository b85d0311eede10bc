/*
Package scope resolves the scope under the cursor into extra suggestion
sources.

Rules are keyed by scope selectors. A selector is a comma separated list of
alternatives, each a space separated descendant path of segments:

	.source.js .comment, .text.plain

A segment matches a scope name when its dot classes are a prefix of the
name's dot separated parts, so `.comment` matches `comment.line.double-slash.js`.
`*` matches any scope. A path matches a scope descriptor when its segments
match descriptor entries in order. The specificity of a match is the number
of classes of the matching alternative; the most specific rule wins and the
later rule wins a tie.
*/
package scope

import (
	"fmt"
	"strings"
)

type segment struct {
	any     bool
	classes []string
}

func (s segment) matches(scopeName string) bool {
	if s.any {
		return true
	}
	parts := strings.Split(scopeName, ".")
	if len(parts) < len(s.classes) {
		return false
	}
	for i, class := range s.classes {
		if parts[i] != class {
			return false
		}
	}
	return true
}

type path []segment

func (p path) specificity() int {
	n := 0
	for _, seg := range p {
		n += len(seg.classes)
	}
	return n
}

func (p path) matches(descriptor []string) bool {
	next := 0
	for _, scopeName := range descriptor {
		if next == len(p) {
			break
		}
		if p[next].matches(scopeName) {
			next++
		}
	}
	return next == len(p)
}

// Selector is a parsed scope selector.
type Selector struct {
	raw  string
	alts []path
}

// ParseSelector parses a scope selector. An empty selector is an error.
func ParseSelector(raw string) (Selector, error) {
	sel := Selector{raw: strings.TrimSpace(raw)}
	for _, alt := range strings.Split(raw, ",") {
		fields := strings.Fields(alt)
		if len(fields) == 0 {
			continue
		}
		p := make(path, 0, len(fields))
		for _, f := range fields {
			if f == "*" {
				p = append(p, segment{any: true})
				continue
			}
			var classes []string
			for _, c := range strings.Split(f, ".") {
				if c != "" {
					classes = append(classes, c)
				}
			}
			if len(classes) == 0 {
				return Selector{}, fmt.Errorf("selector %q: empty segment %q", raw, f)
			}
			p = append(p, segment{classes: classes})
		}
		sel.alts = append(sel.alts, p)
	}
	if len(sel.alts) == 0 {
		return Selector{}, fmt.Errorf("empty selector %q", raw)
	}
	return sel, nil
}

// MustParseSelector is ParseSelector for literals known to be valid.
func MustParseSelector(raw string) Selector {
	sel, err := ParseSelector(raw)
	if err != nil {
		panic(err)
	}
	return sel
}

// Match reports whether the selector matches descriptor and how specific
// the best matching alternative is.
func (s Selector) Match(descriptor []string) (specificity int, ok bool) {
	specificity = -1
	for _, alt := range s.alts {
		if alt.matches(descriptor) {
			ok = true
			specificity = max(specificity, alt.specificity())
		}
	}
	return specificity, ok
}

func (s Selector) String() string {
	return s.raw
}
