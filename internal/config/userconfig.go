package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	dark "github.com/thiagokokada/dark-mode-go"
)

// UserConfig represents user-facing configuration in TOML format
type UserConfig struct {
	// Theme sets the color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	Archive ArchiveSettings `toml:"archive"`
	Search  SearchSettings  `toml:"search"`
	Logs    LogSettings     `toml:"logs"`
	Serve   ServeSettings   `toml:"serve"`
}

// ArchiveSettings locates the archive and the files inside it.
type ArchiveSettings struct {
	// Dir is a local archive directory. Takes precedence over BaseURL.
	Dir string `toml:"dir"`

	// BaseURL is an HTTP location serving the same files (e.g. a running
	// `archive-deck serve`).
	BaseURL string `toml:"base_url"`

	// FileRoot is a prefix stripped from item file paths before they are
	// fetched, e.g. "data/" when index.json lists "data/conversations/x.md"
	// but the archive root already is the data directory.
	FileRoot string `toml:"file_root"`

	// IndexFile is the metadata index (default: index.json)
	IndexFile string `toml:"index_file"`

	// ManifestFile is the search shard manifest (default: search/manifest.json)
	ManifestFile string `toml:"manifest_file"`

	// FallbackFile is the single-file search index (default: search_index.json)
	FallbackFile string `toml:"fallback_file"`
}

// SearchSettings tunes search and recommendations.
type SearchSettings struct {
	// DebounceMS is the quiet period before a typed query runs (default: 120)
	DebounceMS int `toml:"debounce_ms"`

	// SimilarLimit is how many similar conversations are shown (default: 5)
	SimilarLimit int `toml:"similar_limit"`

	// RequestsPerSecond caps HTTP fetches against a remote archive (default: 20)
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// ShardConcurrency caps concurrent shard fetches (default: 8)
	ShardConcurrency int `toml:"shard_concurrency"`
}

// LogSettings defines log file configuration
type LogSettings struct {
	// Enabled turns on the rotated log file. Default: false
	Enabled bool `toml:"enabled"`

	// Level sets the minimum log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `toml:"level"`

	// Format sets the log format: "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB is the max size in MB before rotation. Default: 10
	MaxSizeMB int `toml:"max_size_mb"`

	// Backups is the number of rotated files to keep. Default: 3
	Backups int `toml:"backups"`

	// RetentionDays is the number of days to keep rotated logs. Default: 14
	RetentionDays int `toml:"retention_days"`

	Compress bool `toml:"compress"`

	// AggregateIntervalS is the event summary flush interval. Default: 30
	AggregateIntervalS int `toml:"aggregate_interval_secs"`
}

// ServeSettings configures `archive-deck serve`.
type ServeSettings struct {
	// Listen is the listen address (default: 127.0.0.1:8321)
	Listen string `toml:"listen"`
}

const (
	DefaultIndexFile    = "index.json"
	DefaultManifestFile = "search/manifest.json"
	DefaultFallbackFile = "search_index.json"
	DefaultListen       = "127.0.0.1:8321"
)

var defaultUserConfig = UserConfig{}

// Cache for user config (loaded once per process)
var (
	userConfigCache   *UserConfig
	userConfigCacheMu sync.RWMutex
)

// LoadUserConfig loads the user configuration from TOML file
// Returns cached config after first load
func LoadUserConfig() (*UserConfig, error) {
	userConfigCacheMu.RLock()
	if userConfigCache != nil {
		defer userConfigCacheMu.RUnlock()
		return userConfigCache, nil
	}
	userConfigCacheMu.RUnlock()

	userConfigCacheMu.Lock()
	defer userConfigCacheMu.Unlock()

	if userConfigCache != nil {
		return userConfigCache, nil
	}

	configPath, err := UserConfigPath()
	if err != nil {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	var config UserConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		// Cache the default so a broken file is reported once, not on
		// every getter.
		userConfigCache = &defaultUserConfig
		return userConfigCache, fmt.Errorf("config.toml parse error: %w", err)
	}

	userConfigCache = &config
	return userConfigCache, nil
}

// ReloadUserConfig forces a reload of the user config
func ReloadUserConfig() (*UserConfig, error) {
	ClearUserConfigCache()
	return LoadUserConfig()
}

// ClearUserConfigCache drops the cached config; the next LoadUserConfig
// reads the file again.
func ClearUserConfigCache() {
	userConfigCacheMu.Lock()
	userConfigCache = nil
	userConfigCacheMu.Unlock()
}

// SaveUserConfig writes config.toml atomically (temp file, fsync, rename)
// and clears the cache.
func SaveUserConfig(config *UserConfig) error {
	configPath, err := UserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# Archive Deck Configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	_ = syncConfigFile(tmpPath)
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearUserConfigCache()
	return nil
}

func syncConfigFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// CreateExampleConfig writes a commented example config.toml unless one
// already exists. It reports whether a file was written.
func CreateExampleConfig() (bool, error) {
	configPath, err := UserConfigPath()
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return false, fmt.Errorf("failed to write example config: %w", err)
	}
	return true, nil
}

const exampleConfig = `# Archive Deck Configuration

# "dark", "light" or "system"
theme = "dark"

[archive]
# dir = "~/exports/chat-archive"
# base_url = "http://127.0.0.1:8321"
# file_root = "data/"
index_file = "index.json"
manifest_file = "search/manifest.json"
fallback_file = "search_index.json"

[search]
debounce_ms = 120
similar_limit = 5
requests_per_second = 20
shard_concurrency = 8

[logs]
enabled = false
level = "info"
format = "json"

[serve]
listen = "127.0.0.1:8321"
`

// GetTheme returns the current theme, defaulting to "dark"
func GetTheme() string {
	config, err := LoadUserConfig()
	if err != nil || config == nil {
		return "dark"
	}
	switch config.Theme {
	case "dark", "light", "system":
		return config.Theme
	default:
		return "dark"
	}
}

// ResolveTheme resolves the configured theme to "dark" or "light".
// "system" asks the OS and falls back to "dark" when detection fails.
func ResolveTheme() string {
	theme := GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// GetArchiveSettings returns archive settings with defaults applied and a
// leading ~ in Dir expanded.
func GetArchiveSettings() ArchiveSettings {
	config, _ := LoadUserConfig()
	var s ArchiveSettings
	if config != nil {
		s = config.Archive
	}
	if s.IndexFile == "" {
		s.IndexFile = DefaultIndexFile
	}
	if s.ManifestFile == "" {
		s.ManifestFile = DefaultManifestFile
	}
	if s.FallbackFile == "" {
		s.FallbackFile = DefaultFallbackFile
	}
	s.Dir = ExpandHome(s.Dir)
	return s
}

// Location returns the archive location: Dir when set, else BaseURL.
func (s ArchiveSettings) Location() string {
	if s.Dir != "" {
		return s.Dir
	}
	return s.BaseURL
}

// GetSearchSettings returns search settings with defaults applied
func GetSearchSettings() SearchSettings {
	config, _ := LoadUserConfig()
	var s SearchSettings
	if config != nil {
		s = config.Search
	}
	if s.DebounceMS <= 0 {
		s.DebounceMS = 120
	}
	if s.SimilarLimit <= 0 {
		s.SimilarLimit = 5
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = 20
	}
	if s.ShardConcurrency <= 0 {
		s.ShardConcurrency = 8
	}
	return s
}

// Debounce returns DebounceMS as a duration.
func (s SearchSettings) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// GetLogSettings returns log settings with defaults applied
func GetLogSettings() LogSettings {
	config, _ := LoadUserConfig()
	var s LogSettings
	if config != nil {
		s = config.Logs
	}
	if s.Level == "" {
		s.Level = "info"
	}
	if s.Format == "" {
		s.Format = "json"
	}
	if s.MaxSizeMB <= 0 {
		s.MaxSizeMB = 10
	}
	if s.Backups <= 0 {
		s.Backups = 3
	}
	if s.RetentionDays <= 0 {
		s.RetentionDays = 14
	}
	if s.AggregateIntervalS <= 0 {
		s.AggregateIntervalS = 30
	}
	return s
}

// GetServeSettings returns serve settings with defaults applied
func GetServeSettings() ServeSettings {
	config, _ := LoadUserConfig()
	var s ServeSettings
	if config != nil {
		s = config.Serve
	}
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	return s
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
