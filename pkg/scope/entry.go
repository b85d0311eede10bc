package scope

import "strings"

// EntryKind tags the shape a suggestion list entry was parsed from.
type EntryKind uint8

const (
	// EntrySkip marks an entry without a usable text. It is never offered.
	EntrySkip EntryKind = iota
	// EntryText is a plain string entry.
	EntryText
	// EntryObject is a table entry with a text field.
	EntryObject
)

// Entry is one element of a literal suggestion list, parsed once from the
// loosely typed configuration value.
type Entry struct {
	Kind        EntryKind
	Text        string
	Type        string
	RightLabel  string
	Description string
}

// Usable reports whether the entry can become a suggestion.
func (e Entry) Usable() bool {
	return e.Kind != EntrySkip && e.Text != ""
}

// ParseEntry decides the shape of a raw list value. Strings become text
// entries. Tables need a non-empty string "text" and may carry "type",
// "rightLabel" (or "right_label", "rightLabelHTML") and "description".
// Everything else parses to an EntrySkip entry.
func ParseEntry(v any) Entry {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return Entry{}
		}
		return Entry{Kind: EntryText, Text: val}
	case map[string]any:
		text, _ := val["text"].(string)
		if strings.TrimSpace(text) == "" {
			return Entry{}
		}
		return Entry{
			Kind:        EntryObject,
			Text:        text,
			Type:        firstString(val, "type"),
			RightLabel:  firstString(val, "rightLabel", "right_label", "rightLabelHTML"),
			Description: firstString(val, "description"),
		}
	default:
		return Entry{}
	}
}

// ParseEntries parses a raw list, dropping unusable entries.
func ParseEntries(values []any) []Entry {
	entries := make([]Entry, 0, len(values))
	for _, v := range values {
		if e := ParseEntry(v); e.Usable() {
			entries = append(entries, e)
		}
	}
	return entries
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
