package utils

import (
	"errors"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// LoadTOMLFile loads and parses a TOML file into the provided struct
func LoadTOMLFile(configPath string, config any) error {
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Warnf("TOML parsing error in config file %s: %v. Attempting partial recovery...", configPath, err)
		return err
	}
	return nil
}

// maxRecoveredLines bounds how many broken lines ParseTOMLWithRecovery drops.
const maxRecoveredLines = 16

// ParseTOMLWithRecovery parses a TOML file into a raw map. Lines with syntax
// errors are blanked out one at a time and the parse retried, so one typo
// does not cost the whole file.
func ParseTOMLWithRecovery(configPath string) (map[string]any, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	for dropped := 0; ; dropped++ {
		tempConfig := make(map[string]any)
		_, err := toml.Decode(strings.Join(lines, "\n"), &tempConfig)
		if err == nil {
			return tempConfig, nil
		}

		var perr toml.ParseError
		if !errors.As(err, &perr) || dropped == maxRecoveredLines {
			log.Warnf("Could not parse any valid configuration from %s: %v", configPath, err)
			return nil, err
		}
		row := perr.Position.Line - 1
		if row < 0 || row >= len(lines) || lines[row] == "" {
			log.Warnf("Could not parse any valid configuration from %s: %v", configPath, err)
			return nil, err
		}
		log.Warnf("Skipping line %d of %s: %s", row+1, configPath, perr.Message)
		lines[row] = ""
	}
}

// ExtractSection extracts a specific section from parsed TOML data
func ExtractSection(data map[string]any, sectionName string) (map[string]any, bool) {
	section, ok := data[sectionName].(map[string]any)
	return section, ok
}

// ExtractInt64 safely extracts an int64 value from a map
func ExtractInt64(data map[string]any, key string) (int, bool) {
	if val, ok := data[key].(int64); ok {
		return int(val), true
	}
	return 0, false
}

// ExtractBool safely extracts a bool value from a map
func ExtractBool(data map[string]any, key string) (bool, bool) {
	if val, ok := data[key].(bool); ok {
		return val, true
	}
	return false, false
}

// ExtractString safely extracts a string value from a map
func ExtractString(data map[string]any, key string) (string, bool) {
	if val, ok := data[key].(string); ok {
		return val, true
	}
	return "", false
}

// ExtractTables extracts an array of tables from parsed TOML data.
// Non-table elements are skipped.
func ExtractTables(data map[string]any, key string) []map[string]any {
	switch val := data[key].(type) {
	case []map[string]any:
		return val
	case []any:
		tables := make([]map[string]any, 0, len(val))
		for _, v := range val {
			if t, ok := v.(map[string]any); ok {
				tables = append(tables, t)
			}
		}
		return tables
	default:
		return nil
	}
}
