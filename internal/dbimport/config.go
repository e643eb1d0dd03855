// Package dbimport runs a database import: it loads the live schema, diffs
// it against a persisted data map and applies the changes to that map.
package dbimport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tordrt/dbsync/internal/db"
	"github.com/tordrt/dbsync/internal/filter"
	"github.com/tordrt/dbsync/internal/naming"
	"github.com/tordrt/dbsync/internal/project"
)

// Config holds one import run's settings
type Config struct {
	Source        SourceConfig `toml:"source"`
	TargetDataMap string       `toml:"target_datamap"`
	// Project is the optional project descriptor the map is registered in
	Project string `toml:"project"`
	// DefaultPackage overrides reverse_engineering.default_package
	DefaultPackage               string `toml:"default_package"`
	UseDataMapReverseEngineering bool   `toml:"use_datamap_reverse_engineering"`
	DryRun                       bool   `toml:"dry_run"`

	MetadataCacheSize int           `toml:"metadata_cache_size"`
	MetadataCacheTTL  time.Duration `toml:"metadata_cache_ttl"`

	ReverseEngineering filter.ReverseEngineering `toml:"reverse_engineering"`

	// configDir is the directory containing the TOML file, used to resolve
	// relative paths
	configDir string
}

// SourceConfig identifies the database to import from
type SourceConfig struct {
	URL string `toml:"url"`
}

// ConfigError reports an invalid setting before any database I/O happens
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return e.Field + " " + e.Reason
}

// NewConfig returns a configuration with defaults applied
func NewConfig() *Config {
	return &Config{
		MetadataCacheSize: db.DefaultCacheSize,
		MetadataCacheTTL:  db.DefaultCacheTTL,
	}
}

// LoadConfig reads and validates a TOML config file
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig decodes a TOML config file without validating it, so callers
// can apply overrides first. Unknown keys are rejected.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := NewConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)
	cfg.TargetDataMap = cfg.resolvePath(cfg.TargetDataMap)
	cfg.Project = cfg.resolvePath(cfg.Project)
	return cfg, nil
}

// resolvePath resolves a path relative to the config file directory
func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.configDir == "" {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// Validate checks every setting. The first problem is returned as a
// *ConfigError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return &ConfigError{Field: "source.url", Reason: "is required"}
	}
	if _, err := db.ParseDataSource(c.Source.URL); err != nil {
		return &ConfigError{Field: "source.url", Reason: err.Error()}
	}

	if strings.TrimSpace(c.TargetDataMap) == "" {
		return &ConfigError{Field: "target_datamap", Reason: "is required"}
	}
	if _, err := project.MapName(c.TargetDataMap); err != nil {
		return &ConfigError{Field: "target_datamap", Reason: "must end with .map.xml, .map.yaml or .map.yml"}
	}
	if c.Project != "" && !strings.HasSuffix(strings.ToLower(c.Project), ".xml") {
		return &ConfigError{Field: "project", Reason: "must end with .xml"}
	}

	if c.MetadataCacheSize < 0 {
		return &ConfigError{Field: "metadata_cache_size", Reason: "must not be negative"}
	}
	if c.MetadataCacheTTL < 0 {
		return &ConfigError{Field: "metadata_cache_ttl", Reason: "must not be negative"}
	}

	return validateReverseEngineering(&c.ReverseEngineering, "reverse_engineering")
}

func validateReverseEngineering(r *filter.ReverseEngineering, prefix string) error {
	switch strings.ToLower(r.NamingStrategy) {
	case "", naming.StrategyDefault, naming.StrategyLegacy:
	default:
		return &ConfigError{
			Field:  prefix + ".naming_strategy",
			Reason: fmt.Sprintf("must be one of: %s, %s", naming.StrategyDefault, naming.StrategyLegacy),
		}
	}
	if _, err := naming.New(r.NamingStrategy, r.StripFromTableNames); err != nil {
		return &ConfigError{Field: prefix + ".strip_from_table_names", Reason: err.Error()}
	}
	if _, err := filter.NewNameMatcher(r.MeaningfulPKTables, ""); err != nil {
		return &ConfigError{Field: prefix + ".meaningful_pk_tables", Reason: err.Error()}
	}
	for _, t := range r.TableTypes {
		if strings.TrimSpace(t) == "" {
			return &ConfigError{Field: prefix + ".table_types", Reason: "must not contain empty entries"}
		}
	}
	if _, err := filter.Build(*r); err != nil {
		return &ConfigError{Field: prefix, Reason: err.Error()}
	}
	return nil
}

// DataMapName is the map name derived from the target file
func (c *Config) DataMapName() string {
	name, _ := project.MapName(c.TargetDataMap)
	return name
}

// EffectiveDefaultPackage is the package new classes are placed in
func (c *Config) EffectiveDefaultPackage() string {
	if c.DefaultPackage != "" {
		return c.DefaultPackage
	}
	return c.ReverseEngineering.DefaultPackage
}

// settings are the values one run actually uses, after the map's embedded
// configuration was taken into account
type settings struct {
	reverse        filter.ReverseEngineering
	defaultPackage string
	filters        *filter.FiltersConfig
	generator      naming.NameGenerator
	meaningfulPK   *filter.PatternFilter
}

func newSettings(r filter.ReverseEngineering, defaultPackage string) (*settings, error) {
	if err := validateReverseEngineering(&r, "dbImport"); err != nil {
		return nil, err
	}
	filters, err := filter.Build(r)
	if err != nil {
		return nil, err
	}
	gen, err := naming.New(r.NamingStrategy, r.StripFromTableNames)
	if err != nil {
		return nil, err
	}
	meaningful, err := filter.NewNameMatcher(r.MeaningfulPKTables, "")
	if err != nil {
		return nil, err
	}
	if r.MeaningfulPKTables == "" {
		meaningful = filter.IncludeNothing()
	}
	return &settings{
		reverse:        r,
		defaultPackage: defaultPackage,
		filters:        filters,
		generator:      gen,
		meaningfulPK:   meaningful,
	}, nil
}
