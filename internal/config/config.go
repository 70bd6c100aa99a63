package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gapfill configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reference data locations
	Reference ReferenceConfig `yaml:"reference"`

	// Suggestion defaults
	Suggest SuggestConfig `yaml:"suggest"`

	// Subsystem index caching
	Cache CacheConfig `yaml:"cache"`

	// SQLite reference store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ReferenceConfig locates the curated reference files.
// Relative paths are resolved against Root.
type ReferenceConfig struct {
	Root            string `yaml:"root"`
	SubsystemsFile  string `yaml:"subsystems_file"`  // role<TAB>subsystem<TAB>class1<TAB>class2
	BiochemistryDir string `yaml:"biochemistry_dir"` // reactions.tsv, complex_roles.tsv, reaction_complexes.tsv
}

// SuggestConfig holds defaults for the suggestion engine.
type SuggestConfig struct {
	Threshold  float64 `yaml:"threshold"`
	Verbose    bool    `yaml:"verbose"`
	RoleFilter string  `yaml:"role_filter"` // observed, reaction_ids
}

// CacheConfig controls the in-process subsystem index cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Watch   bool `yaml:"watch"` // evict on file change events
}

// StoreConfig configures the SQLite reference store.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // sqlite (pure Go), sqlite3 (cgo)
	DatabasePath string `yaml:"database_path"`
	Timeout      string `yaml:"timeout"`
}

// Role filter modes accepted by SuggestConfig.RoleFilter.
const (
	RoleFilterObserved    = "observed"
	RoleFilterReactionIDs = "reaction_ids"
)

// SQL drivers accepted by StoreConfig.Driver.
const (
	StoreDriverSQLite  = "sqlite"
	StoreDriverSQLite3 = "sqlite3"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "gapfill",
		Version: "0.3.0",

		Reference: ReferenceConfig{
			Root:            "Biochemistry",
			SubsystemsFile:  "SEED/Subsystems/SS_functions_Oct_2015.txt",
			BiochemistryDir: "ModelSEED",
		},

		Suggest: SuggestConfig{
			Threshold:  0,
			Verbose:    false,
			RoleFilter: RoleFilterObserved,
		},

		Cache: CacheConfig{
			Enabled: true,
			Watch:   false,
		},

		Store: StoreConfig{
			Driver:       StoreDriverSQLite,
			DatabasePath: ".gapfill/reference.db",
			Timeout:      "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honour the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file. It does not validate; Load
// followed by Validate reports problems.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("GAPFILL_REFERENCE_ROOT"); root != "" {
		c.Reference.Root = root
	}
	if file := os.Getenv("GAPFILL_SUBSYSTEMS_FILE"); file != "" {
		c.Reference.SubsystemsFile = file
	}
	if dir := os.Getenv("GAPFILL_BIOCHEMISTRY_DIR"); dir != "" {
		c.Reference.BiochemistryDir = dir
	}
	if path := os.Getenv("GAPFILL_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if raw := os.Getenv("GAPFILL_THRESHOLD"); raw != "" {
		// An unparsable value is left for Validate to report against the file value.
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Suggest.Threshold = v
		}
	}
}

// SubsystemsPath returns the subsystem file path resolved against the reference root.
func (c *Config) SubsystemsPath() string {
	return c.resolve(c.Reference.SubsystemsFile)
}

// BiochemistryPath returns the biochemistry directory resolved against the reference root.
func (c *Config) BiochemistryPath() string {
	return c.resolve(c.Reference.BiochemistryDir)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Reference.Root, p)
}

// GetStoreTimeout returns the store timeout as a duration.
func (c *Config) GetStoreTimeout() time.Duration {
	d, err := time.ParseDuration(c.Store.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidRoleFilters lists the accepted role filter modes.
var ValidRoleFilters = []string{RoleFilterObserved, RoleFilterReactionIDs}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Reference.Root == "" {
		return fmt.Errorf("reference root not configured (set reference.root or GAPFILL_REFERENCE_ROOT)")
	}

	if c.Suggest.Threshold < 0 || c.Suggest.Threshold > 1 {
		return fmt.Errorf("invalid suggest threshold %v: must be within [0, 1]", c.Suggest.Threshold)
	}

	validFilter := false
	for _, f := range ValidRoleFilters {
		if c.Suggest.RoleFilter == f {
			validFilter = true
			break
		}
	}
	if !validFilter {
		return fmt.Errorf("invalid role filter: %s (valid: %v)", c.Suggest.RoleFilter, ValidRoleFilters)
	}

	if c.Store.Driver != StoreDriverSQLite && c.Store.Driver != StoreDriverSQLite3 {
		return fmt.Errorf("invalid store driver: %s (valid: %s, %s)", c.Store.Driver, StoreDriverSQLite, StoreDriverSQLite3)
	}

	return nil
}
