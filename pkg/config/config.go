/*
Package config manages TOML config for subserve.

Besides the suggestion options, the file carries the per-scope rules that
feed extra suggestions:

	[suggest]
	minimum_word_length = 3

	[[scope]]
	selector = ".source.js .comment"
	completions = ["TODO", "FIXME"]

	  [[scope.symbol]]
	  type = "comment"
	  selector = ".comment"

	  [[scope.symbol]]
	  type = "builtin"
	  suggestions = ["abcd", { text = "abcde", type = "function", rightLabel = "one" }]
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bastiangx/subserve/internal/utils"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Suggest SuggestConfig `toml:"suggest"`
	Server  ServerConfig  `toml:"server"`
	CLI     CliConfig     `toml:"cli"`
	Scopes  []ScopeConfig `toml:"scope,omitempty"`
}

// SuggestConfig holds the options of the suggestion core.
type SuggestConfig struct {
	MinimumWordLength                int  `toml:"minimum_word_length"`
	IncludeCompletionsFromAllBuffers bool `toml:"include_completions_from_all_buffers"`
	EnableExtendedUnicodeSupport     bool `toml:"enable_extended_unicode_support"`
	MaxIndexRangeLines               int  `toml:"max_index_range_lines"`
	MaxResultsPerBuffer              int  `toml:"max_results_per_buffer"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit  int `toml:"max_limit"`
	MaxPrefix int `toml:"max_prefix"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit  int    `toml:"default_limit"`
	Files         string `toml:"files"`
	SettleDelayMs int    `toml:"settle_delay_ms"`
}

// ScopeConfig is one scope rule. Symbols keep their declared order.
type ScopeConfig struct {
	Selector    string         `toml:"selector"`
	Symbols     []SymbolConfig `toml:"symbol,omitempty"`
	Completions []any          `toml:"completions,omitempty"`
}

// SymbolConfig is a named suggestion type. Selector marks the type given to
// buffer words, Suggestions is a literal list of strings or tables.
type SymbolConfig struct {
	Type        string `toml:"type"`
	Selector    string `toml:"selector,omitempty"`
	Suggestions []any  `toml:"suggestions,omitempty"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. $XDG_CONFIG_HOME/subserve
// 2. ~/.config/subserve
// 3. ~/Library/Application Support/subserve (macOS)
// 4. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if result := utils.CheckDirStatus(filepath.Join(xdg, "subserve")); result.Writable {
			return filepath.Join(xdg, "subserve"), nil
		}
	}
	primaryPath := filepath.Join(homeDir, ".config", "subserve")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "subserve")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/subserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	opts := suggest.DefaultOptions()
	return &Config{
		Suggest: SuggestConfig{
			MinimumWordLength:                opts.MinimumWordLength,
			IncludeCompletionsFromAllBuffers: opts.IncludeCompletionsFromAllBuffers,
			EnableExtendedUnicodeSupport:     opts.EnableExtendedUnicodeSupport,
			MaxIndexRangeLines:               opts.MaxIndexRangeLines,
			MaxResultsPerBuffer:              opts.MaxResultsPerBuffer,
		},
		Server: ServerConfig{
			MaxLimit:  64,
			MaxPrefix: 60,
		},
		CLI: CliConfig{
			DefaultLimit:  24,
			SettleDelayMs: 300,
		},
	}
}

// Options converts the suggest section into core options, replacing out of
// range values with defaults.
func (c *Config) Options() suggest.Options {
	def := suggest.DefaultOptions()
	opts := suggest.Options{
		MinimumWordLength:                c.Suggest.MinimumWordLength,
		IncludeCompletionsFromAllBuffers: c.Suggest.IncludeCompletionsFromAllBuffers,
		EnableExtendedUnicodeSupport:     c.Suggest.EnableExtendedUnicodeSupport,
		MaxIndexRangeLines:               c.Suggest.MaxIndexRangeLines,
		MaxResultsPerBuffer:              c.Suggest.MaxResultsPerBuffer,
	}
	if opts.MinimumWordLength < 0 {
		log.Warnf("minimum_word_length %d is negative, using %d", opts.MinimumWordLength, def.MinimumWordLength)
		opts.MinimumWordLength = def.MinimumWordLength
	}
	if opts.MaxIndexRangeLines <= 0 {
		log.Warnf("max_index_range_lines %d must be positive, using %d", opts.MaxIndexRangeLines, def.MaxIndexRangeLines)
		opts.MaxIndexRangeLines = def.MaxIndexRangeLines
	}
	if opts.MaxResultsPerBuffer < 0 {
		opts.MaxResultsPerBuffer = def.MaxResultsPerBuffer
	}
	return opts
}

// SetOptions writes core options back into the suggest section.
func (c *Config) SetOptions(opts suggest.Options) {
	c.Suggest = SuggestConfig{
		MinimumWordLength:                opts.MinimumWordLength,
		IncludeCompletionsFromAllBuffers: opts.IncludeCompletionsFromAllBuffers,
		EnableExtendedUnicodeSupport:     opts.EnableExtendedUnicodeSupport,
		MaxIndexRangeLines:               opts.MaxIndexRangeLines,
		MaxResultsPerBuffer:              opts.MaxResultsPerBuffer,
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps every well-typed value of a TOML file whose shape
// does not fit Config.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "suggest"); ok {
		extractSuggestConfig(section, &config.Suggest)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	for _, table := range utils.ExtractTables(tempConfig, "scope") {
		if sc, ok := extractScopeConfig(table); ok {
			config.Scopes = append(config.Scopes, sc)
		}
	}
	return config, nil
}

func extractSuggestConfig(data map[string]any, s *SuggestConfig) {
	if val, ok := utils.ExtractInt64(data, "minimum_word_length"); ok {
		s.MinimumWordLength = val
	}
	if val, ok := utils.ExtractBool(data, "include_completions_from_all_buffers"); ok {
		s.IncludeCompletionsFromAllBuffers = val
	}
	if val, ok := utils.ExtractBool(data, "enable_extended_unicode_support"); ok {
		s.EnableExtendedUnicodeSupport = val
	}
	if val, ok := utils.ExtractInt64(data, "max_index_range_lines"); ok {
		s.MaxIndexRangeLines = val
	}
	if val, ok := utils.ExtractInt64(data, "max_results_per_buffer"); ok {
		s.MaxResultsPerBuffer = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractString(data, "files"); ok {
		cli.Files = val
	}
	if val, ok := utils.ExtractInt64(data, "settle_delay_ms"); ok {
		cli.SettleDelayMs = val
	}
}

// extractScopeConfig rebuilds a scope rule from a raw table. Rules without
// a selector are dropped.
func extractScopeConfig(data map[string]any) (ScopeConfig, bool) {
	selector, ok := utils.ExtractString(data, "selector")
	if !ok || selector == "" {
		log.Warnf("Dropping scope rule without selector")
		return ScopeConfig{}, false
	}
	sc := ScopeConfig{Selector: selector}
	if list, ok := data["completions"].([]any); ok {
		sc.Completions = list
	}
	for _, table := range utils.ExtractTables(data, "symbol") {
		typ, _ := utils.ExtractString(table, "type")
		sym := SymbolConfig{Type: typ}
		sym.Selector, _ = utils.ExtractString(table, "selector")
		if list, ok := table["suggestions"].([]any); ok {
			sym.Suggestions = list
		}
		sc.Symbols = append(sc.Symbols, sym)
	}
	return sc, true
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// RebuildConfigFile overwrites configPath, or the default path when empty,
// with the builtin defaults and returns the path written.
func RebuildConfigFile(configPath string) (string, error) {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err != nil {
			return "", err
		}
		configPath = defaultPath
	}
	if err := utils.EnsureDir(filepath.Dir(configPath)); err != nil {
		return "", err
	}
	if err := utils.SaveTOMLFile(DefaultConfig(), configPath); err != nil {
		return "", fmt.Errorf("rebuilding %s: %w", configPath, err)
	}
	return configPath, nil
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// Update changes the suggest values and saves to file when configPath is
// set.
func (c *Config) Update(configPath string, minWordLength *int, allBuffers, unicode *bool) error {
	s := &c.Suggest
	if minWordLength != nil {
		s.MinimumWordLength = *minWordLength
	}
	if allBuffers != nil {
		s.IncludeCompletionsFromAllBuffers = *allBuffers
	}
	if unicode != nil {
		s.EnableExtendedUnicodeSupport = *unicode
	}
	if configPath == "" {
		return nil
	}
	return SaveConfig(c, configPath)
}
