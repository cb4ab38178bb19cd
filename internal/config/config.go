package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Config represents the complete fsledger configuration.
type Config struct {
	Version  int             `yaml:"version" json:"version"`
	DataDir  string          `yaml:"data_dir" json:"data_dir"`
	Ledger   LedgerConfig    `yaml:"ledger" json:"ledger"`
	Watch    WatchConfig     `yaml:"watch" json:"watch"`
	Hash     HashConfig      `yaml:"hash" json:"hash"`
	Server   ServerConfig    `yaml:"server" json:"server"`
	Watchers []WatcherConfig `yaml:"watchers" json:"watchers"`
}

// LedgerConfig configures the event ledger.
type LedgerConfig struct {
	// Path of the NDJSON ledger. Empty means <data_dir>/events.jsonl.
	Path string `yaml:"path" json:"path"`

	// AppendRetries is how many times a failed append is retried.
	AppendRetries int `yaml:"append_retries" json:"append_retries"`

	// RetryDelay is the delay before the first retry; it doubles each time.
	RetryDelay string `yaml:"retry_delay" json:"retry_delay"`
}

// WatchConfig configures every watcher.
type WatchConfig struct {
	// Backend is auto, fsnotify or polling.
	Backend string `yaml:"backend" json:"backend"`

	PollInterval      string `yaml:"poll_interval" json:"poll_interval"`
	CorrelationWindow string `yaml:"correlation_window" json:"correlation_window"`
	CoalesceWindow    string `yaml:"coalesce_window" json:"coalesce_window"`
	StopGrace         string `yaml:"stop_grace" json:"stop_grace"`

	// MaxRestarts bounds automatic restarts after a backend failure.
	// -1 disables them.
	MaxRestarts int `yaml:"max_restarts" json:"max_restarts"`

	// EventBuffer is the backend notification buffer size.
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`

	// DefaultIgnore patterns apply to every watcher.
	DefaultIgnore []string `yaml:"default_ignore" json:"default_ignore"`
}

// HashConfig configures content fingerprints.
type HashConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// MaxBytes is the largest file that gets a fingerprint.
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`

	// Timeout is the soft limit for hashing one file.
	Timeout string `yaml:"timeout" json:"timeout"`

	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// WatcherConfig is one watcher started by `fsledger serve`.
type WatcherConfig struct {
	Path           string   `yaml:"path" json:"path"`
	Recursive      *bool    `yaml:"recursive,omitempty" json:"recursive,omitempty"`
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty" json:"ignore_patterns,omitempty"`
	CalculateHash  bool     `yaml:"calculate_hash,omitempty" json:"calculate_hash,omitempty"`
	HashAlgorithm  string   `yaml:"hash_algorithm,omitempty" json:"hash_algorithm,omitempty"`
}

// IsRecursive returns the recursive setting, true when unset.
func (w WatcherConfig) IsRecursive() bool {
	return w.Recursive == nil || *w.Recursive
}

var defaultIgnorePatterns = []string{
	".git",
	"*.swp",
	"*.swx",
	"*~",
	".DS_Store",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Ledger: LedgerConfig{
			AppendRetries: 3,
			RetryDelay:    "50ms",
		},
		Watch: WatchConfig{
			Backend:           "auto",
			PollInterval:      "2s",
			CorrelationWindow: "500ms",
			CoalesceWindow:    "50ms",
			StopGrace:         "2s",
			MaxRestarts:       3,
			EventBuffer:       1000,
			DefaultIgnore:     append([]string{}, defaultIgnorePatterns...),
		},
		Hash: HashConfig{
			Algorithm: "sha256",
			MaxBytes:  512 << 20,
			Timeout:   "10s",
			CacheSize: 4096,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Watchers: []WatcherConfig{},
	}
}

// defaultDataDir returns ~/.fsledger.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fsledger")
	}
	return filepath.Join(home, ".fsledger")
}

// LedgerPath returns the ledger file path.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return ExpandHome(c.Ledger.Path)
	}
	return filepath.Join(ExpandHome(c.DataDir), "events.jsonl")
}

// ExportsDir returns the default directory for exports.
func (c *Config) ExportsDir() string {
	return filepath.Join(ExpandHome(c.DataDir), "exports")
}

// ExpandHome replaces a leading ~ with the home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/fsledger/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/fsledger/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fsledger", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fsledger", "config.yaml")
	}
	return filepath.Join(home, ".config", "fsledger", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration. It applies, in order of increasing
// precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/fsledger/config.yaml)
//  3. The explicit file, when explicitPath is not empty
//  4. Environment variables (FSLEDGER_*)
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fserrors.ConfigError("failed to load user config", err).WithDetail("path", path)
		}
	}

	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, fserrors.New(fserrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", explicitPath), nil).
				WithDetail("path", explicitPath)
		}
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, fserrors.ConfigError("failed to load config", err).WithDetail("path", explicitPath)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	// Ledger
	if other.Ledger.Path != "" {
		c.Ledger.Path = other.Ledger.Path
	}
	if other.Ledger.AppendRetries != 0 {
		c.Ledger.AppendRetries = other.Ledger.AppendRetries
	}
	if other.Ledger.RetryDelay != "" {
		c.Ledger.RetryDelay = other.Ledger.RetryDelay
	}

	// Watch
	if other.Watch.Backend != "" {
		c.Watch.Backend = other.Watch.Backend
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.CorrelationWindow != "" {
		c.Watch.CorrelationWindow = other.Watch.CorrelationWindow
	}
	if other.Watch.CoalesceWindow != "" {
		c.Watch.CoalesceWindow = other.Watch.CoalesceWindow
	}
	if other.Watch.StopGrace != "" {
		c.Watch.StopGrace = other.Watch.StopGrace
	}
	if other.Watch.MaxRestarts != 0 {
		c.Watch.MaxRestarts = other.Watch.MaxRestarts
	}
	if other.Watch.EventBuffer != 0 {
		c.Watch.EventBuffer = other.Watch.EventBuffer
	}
	if other.Watch.DefaultIgnore != nil {
		// An explicit list replaces the defaults, so `default_ignore: []`
		// turns them off.
		c.Watch.DefaultIgnore = other.Watch.DefaultIgnore
	}

	// Hash
	if other.Hash.Algorithm != "" {
		c.Hash.Algorithm = other.Hash.Algorithm
	}
	if other.Hash.MaxBytes != 0 {
		c.Hash.MaxBytes = other.Hash.MaxBytes
	}
	if other.Hash.Timeout != "" {
		c.Hash.Timeout = other.Hash.Timeout
	}
	if other.Hash.CacheSize != 0 {
		c.Hash.CacheSize = other.Hash.CacheSize
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Watchers from a later layer replace the earlier list.
	if len(other.Watchers) > 0 {
		c.Watchers = other.Watchers
	}
}

// applyEnvOverrides applies FSLEDGER_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FSLEDGER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FSLEDGER_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("FSLEDGER_WATCH_BACKEND"); v != "" {
		c.Watch.Backend = v
	}
	if v := os.Getenv("FSLEDGER_POLL_INTERVAL"); v != "" {
		c.Watch.PollInterval = v
	}
	if v := os.Getenv("FSLEDGER_CORRELATION_WINDOW"); v != "" {
		c.Watch.CorrelationWindow = v
	}
	if v := os.Getenv("FSLEDGER_MAX_RESTARTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fserrors.ConfigError("FSLEDGER_MAX_RESTARTS must be an integer", err)
		}
		c.Watch.MaxRestarts = n
	}
	if v := os.Getenv("FSLEDGER_HASH_ALGORITHM"); v != "" {
		c.Hash.Algorithm = v
	}
	if v := os.Getenv("FSLEDGER_HASH_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fserrors.ConfigError("FSLEDGER_HASH_MAX_BYTES must be an integer", err)
		}
		c.Hash.MaxBytes = n
	}
	if v := os.Getenv("FSLEDGER_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FSLEDGER_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fserrors.ConfigError("data_dir must not be empty", nil)
	}
	if c.Ledger.AppendRetries < 0 {
		return fserrors.ConfigError(fmt.Sprintf("ledger.append_retries must be non-negative, got %d", c.Ledger.AppendRetries), nil)
	}

	durations := []struct {
		name  string
		value string
	}{
		{"ledger.retry_delay", c.Ledger.RetryDelay},
		{"watch.poll_interval", c.Watch.PollInterval},
		{"watch.correlation_window", c.Watch.CorrelationWindow},
		{"watch.coalesce_window", c.Watch.CoalesceWindow},
		{"watch.stop_grace", c.Watch.StopGrace},
		{"hash.timeout", c.Hash.Timeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fserrors.ConfigError(fmt.Sprintf("%s is not a duration: %q", d.name, d.value), err)
		}
		if v < 0 {
			return fserrors.ConfigError(fmt.Sprintf("%s must not be negative", d.name), nil)
		}
	}
	if Duration(c.Watch.PollInterval) == 0 {
		return fserrors.ConfigError("watch.poll_interval must be positive", nil)
	}

	validBackends := map[string]bool{"auto": true, "fsnotify": true, "polling": true}
	if !validBackends[strings.ToLower(c.Watch.Backend)] {
		return fserrors.ConfigError(fmt.Sprintf("watch.backend must be 'auto', 'fsnotify' or 'polling', got %s", c.Watch.Backend), nil)
	}
	if c.Watch.MaxRestarts < -1 {
		return fserrors.ConfigError(fmt.Sprintf("watch.max_restarts must be -1 or more, got %d", c.Watch.MaxRestarts), nil)
	}
	if c.Watch.EventBuffer < 0 {
		return fserrors.ConfigError(fmt.Sprintf("watch.event_buffer must be non-negative, got %d", c.Watch.EventBuffer), nil)
	}

	validAlgorithms := map[string]bool{"sha256": true, "sha1": true, "md5": true, "blake3": true, "xxhash64": true}
	if !validAlgorithms[strings.ToLower(c.Hash.Algorithm)] {
		return fserrors.ConfigError(fmt.Sprintf("hash.algorithm must be one of sha256, sha1, md5, blake3, xxhash64, got %s", c.Hash.Algorithm), nil)
	}
	if c.Hash.MaxBytes < 0 {
		return fserrors.ConfigError(fmt.Sprintf("hash.max_bytes must be non-negative, got %d", c.Hash.MaxBytes), nil)
	}
	if c.Hash.CacheSize < 0 {
		return fserrors.ConfigError(fmt.Sprintf("hash.cache_size must be non-negative, got %d", c.Hash.CacheSize), nil)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fserrors.ConfigError(fmt.Sprintf("server.transport must be 'stdio', got %s", c.Server.Transport), nil)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fserrors.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}

	for i, w := range c.Watchers {
		if w.Path == "" {
			return fserrors.ConfigError(fmt.Sprintf("watchers[%d].path must not be empty", i), nil)
		}
		if w.HashAlgorithm != "" && !validAlgorithms[strings.ToLower(w.HashAlgorithm)] {
			return fserrors.ConfigError(fmt.Sprintf("watchers[%d].hash_algorithm %q is not supported", i, w.HashAlgorithm), nil)
		}
	}
	return nil
}

// Duration parses a duration field. Values that passed Validate always
// parse; anything else yields zero.
func Duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
