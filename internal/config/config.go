package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
)

// ProjectFileName is the per-project configuration file.
const ProjectFileName = ".artifactidx.yaml"

// MergeAll as the only member of a merged context means every plain
// context, re-evaluated on each search.
const MergeAll = "*"

// Config represents the complete artifactidx configuration.
type Config struct {
	Version  int             `yaml:"version" json:"version"`
	DataDir  string          `yaml:"data_dir" json:"data_dir"`
	Contexts []ContextConfig `yaml:"contexts" json:"contexts"`
	Merged   []MergedConfig  `yaml:"merged" json:"merged"`
	Scan     ScanConfig      `yaml:"scan" json:"scan"`
	Search   SearchConfig    `yaml:"search" json:"search"`
	Watch    WatchConfig     `yaml:"watch" json:"watch"`
	Logging  LoggingConfig   `yaml:"logging" json:"logging"`
	Server   ServerConfig    `yaml:"server" json:"server"`
}

// ContextConfig describes one indexing context.
type ContextConfig struct {
	ID           string `yaml:"id" json:"id"`
	RepositoryID string `yaml:"repository_id,omitempty" json:"repository_id,omitempty"`
	// Repository is the local repository root. Empty means not scannable.
	Repository string `yaml:"repository,omitempty" json:"repository,omitempty"`
	// IndexDir defaults to <data_dir>/indexes/<id>. "memory" keeps the index in memory.
	IndexDir       string   `yaml:"index_dir,omitempty" json:"index_dir,omitempty"`
	RepositoryURL  string   `yaml:"repository_url,omitempty" json:"repository_url,omitempty"`
	IndexUpdateURL string   `yaml:"index_update_url,omitempty" json:"index_update_url,omitempty"`
	Creators       []string `yaml:"creators,omitempty" json:"creators,omitempty"`
	// Searchable defaults to true.
	Searchable *bool `yaml:"searchable,omitempty" json:"searchable,omitempty"`
	// Forced discards an incompatible existing index instead of failing.
	Forced bool `yaml:"forced,omitempty" json:"forced,omitempty"`
}

// IsSearchable reports the effective searchable flag.
func (c ContextConfig) IsSearchable() bool {
	return c.Searchable == nil || *c.Searchable
}

// MergedConfig describes a merged context.
type MergedConfig struct {
	ID           string   `yaml:"id" json:"id"`
	RepositoryID string   `yaml:"repository_id,omitempty" json:"repository_id,omitempty"`
	Repository   string   `yaml:"repository,omitempty" json:"repository,omitempty"`
	Members      []string `yaml:"members" json:"members"`
	Searchable   *bool    `yaml:"searchable,omitempty" json:"searchable,omitempty"`
}

// IsSearchable reports the effective searchable flag.
func (m MergedConfig) IsSearchable() bool {
	return m.Searchable == nil || *m.Searchable
}

// Dynamic reports whether the members are every plain context.
func (m MergedConfig) Dynamic() bool {
	return len(m.Members) == 1 && m.Members[0] == MergeAll
}

// ScanConfig configures repository crawling.
type ScanConfig struct {
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig configures search defaults.
type SearchConfig struct {
	// HitLimit caps CLI and MCP result counts.
	HitLimit        int `yaml:"hit_limit" json:"hit_limit"`
	PageSize        int `yaml:"page_size" json:"page_size"`
	Parallelism     int `yaml:"parallelism" json:"parallelism"`
	DigestCacheSize int `yaml:"digest_cache_size" json:"digest_cache_size"`
}

// WatchConfig configures the repository watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
}

// defaultExcludePatterns are never artifacts.
var defaultExcludePatterns = []string{
	".index/",
	".meta/",
	".nexus/",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Scan: ScanConfig{
			Exclude: append([]string(nil), defaultExcludePatterns...),
		},
		Search: SearchConfig{
			HitLimit:        50,
			PageSize:        200,
			Parallelism:     8,
			DigestCacheSize: 1024,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Server: ServerConfig{
			Transport: "stdio",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".artifactidx")
	}
	return filepath.Join(home, ".artifactidx")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/artifactidx/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/artifactidx/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "artifactidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "artifactidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "artifactidx", "config.yaml")
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/artifactidx/config.yaml)
//  3. Project config: file when given, else .artifactidx.yaml in dir
//  4. Environment variables (ARTIFACTIDX_*)
func Load(dir, file string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if file == "" {
		if p := filepath.Join(dir, ProjectFileName); fileExists(p) {
			file = p
		}
	} else if !fileExists(file) {
		return nil, fmt.Errorf("config file %s not found", file)
	}
	if file != "" {
		if err := cfg.loadYAML(file); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges a YAML file into c. Relative repository and index paths
// are resolved against the file's directory.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	parsed.resolvePaths(base)

	c.mergeWith(&parsed)
	return nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || p == "memory" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.DataDir = abs(c.DataDir)
	for i := range c.Contexts {
		c.Contexts[i].Repository = abs(c.Contexts[i].Repository)
		c.Contexts[i].IndexDir = abs(c.Contexts[i].IndexDir)
	}
	for i := range c.Merged {
		c.Merged[i].Repository = abs(c.Merged[i].Repository)
	}
}

// mergeWith merges non-zero values from other into c. Contexts are merged
// by id: a later definition replaces an earlier one.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	for _, oc := range other.Contexts {
		replaced := false
		for i := range c.Contexts {
			if c.Contexts[i].ID == oc.ID {
				c.Contexts[i] = oc
				replaced = true
			}
		}
		if !replaced {
			c.Contexts = append(c.Contexts, oc)
		}
	}
	for _, om := range other.Merged {
		replaced := false
		for i := range c.Merged {
			if c.Merged[i].ID == om.ID {
				c.Merged[i] = om
				replaced = true
			}
		}
		if !replaced {
			c.Merged = append(c.Merged, om)
		}
	}

	if len(other.Scan.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Scan.Exclude = append(c.Scan.Exclude, other.Scan.Exclude...)
	}

	if other.Search.HitLimit != 0 {
		c.Search.HitLimit = other.Search.HitLimit
	}
	if other.Search.PageSize != 0 {
		c.Search.PageSize = other.Search.PageSize
	}
	if other.Search.Parallelism != 0 {
		c.Search.Parallelism = other.Search.Parallelism
	}
	if other.Search.DigestCacheSize != 0 {
		c.Search.DigestCacheSize = other.Search.DigestCacheSize
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
}

// applyEnvOverrides applies ARTIFACTIDX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ARTIFACTIDX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ARTIFACTIDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ARTIFACTIDX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("ARTIFACTIDX_HIT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.HitLimit = n
		}
	}
	if v := os.Getenv("ARTIFACTIDX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.PageSize = n
		}
	}
	if v := os.Getenv("ARTIFACTIDX_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	ids := map[string]bool{}
	known := map[string]bool{}
	for _, id := range artifact.CreatorIDs() {
		known[id] = true
	}

	for _, cc := range c.Contexts {
		if cc.ID == "" {
			return fmt.Errorf("contexts: id is required")
		}
		if strings.ContainsAny(cc.ID, `/\`) {
			return fmt.Errorf("context %s: id must not contain path separators", cc.ID)
		}
		if ids[cc.ID] {
			return fmt.Errorf("context %s: duplicate id", cc.ID)
		}
		ids[cc.ID] = true
		for _, cr := range cc.Creators {
			if !known[cr] {
				return fmt.Errorf("context %s: unknown creator %q (known: %s)", cc.ID, cr, strings.Join(artifact.CreatorIDs(), ", "))
			}
		}
	}
	for _, m := range c.Merged {
		if m.ID == "" {
			return fmt.Errorf("merged: id is required")
		}
		if ids[m.ID] {
			return fmt.Errorf("merged context %s: duplicate id", m.ID)
		}
		ids[m.ID] = true
	}
	for _, m := range c.Merged {
		if len(m.Members) == 0 {
			return fmt.Errorf("merged context %s: members are required", m.ID)
		}
		if m.Dynamic() {
			continue
		}
		for _, member := range m.Members {
			if member == MergeAll {
				return fmt.Errorf("merged context %s: %q must be the only member", m.ID, MergeAll)
			}
			if !ids[member] {
				return fmt.Errorf("merged context %s: unknown member %s", m.ID, member)
			}
		}
	}

	if c.Search.HitLimit < 0 {
		return fmt.Errorf("search.hit_limit must be non-negative, got %d", c.Search.HitLimit)
	}
	if c.Search.PageSize < 0 {
		return fmt.Errorf("search.page_size must be non-negative, got %d", c.Search.PageSize)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WatchDebounce parses the watcher debounce interval.
func (c *Config) WatchDebounce() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("watch.debounce must be a non-negative duration, got %q", c.Watch.Debounce)
	}
	return d, nil
}

// IndexDir returns where a context's index lives, empty for in-memory indexes.
func (c *Config) IndexDir(cc ContextConfig) string {
	switch cc.IndexDir {
	case "memory":
		return ""
	case "":
		return filepath.Join(c.DataDir, "indexes", cc.ID)
	default:
		return cc.IndexDir
	}
}

// JournalPath returns the rescan journal database path.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

// LogDir returns the log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
