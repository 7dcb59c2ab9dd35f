// Package config loads and validates the Configuration Surface: a
// structured record read from YAML, overridden by environment variables,
// and validated before any file is touched, following the teacher's
// file → defaults → env-override → validate pipeline shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joaquim-lab/chipstage/pkg/stageerr"
	"gopkg.in/yaml.v2"
)

// Config is the full external interface surface.
type Config struct {
	RawRoot      string `yaml:"raw_root"`
	StageRoot    string `yaml:"stage_root"`
	DerivedRoot  string `yaml:"derived_root"`
	CatalogPath  string `yaml:"catalog_path"`

	LocalTimezone string `yaml:"local_timezone"`

	WorkerCount   int `yaml:"worker_count"`
	ThreadCap     int `yaml:"thread_cap"` // polars-like per-worker thread cap, advisory only in Go

	Force         bool `yaml:"force"`
	Strict        bool `yaml:"strict"`
	StrictColumns bool `yaml:"strict_columns"`

	RejectsDirOverride  string `yaml:"rejects_dir"`
	EventsDirOverride   string `yaml:"events_dir"`
	ManifestPathOverride string `yaml:"manifest_path"`

	InputExtension string `yaml:"input_extension"`

	localTZ *time.Location
}

// Load reads path (if non-empty), applies defaults, applies environment
// overrides, and validates the result. An empty path skips the file step
// and proceeds on defaults + environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return stageerr.InvalidConfig("load", "cannot read config file").Wrap(err).With("path", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return stageerr.InvalidConfig("load", "malformed config YAML").Wrap(err).With("path", path)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LocalTimezone == "" {
		cfg.LocalTimezone = "UTC"
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 6
	}
	if cfg.ThreadCap == 0 {
		cfg.ThreadCap = 1
	}
	if cfg.InputExtension == "" {
		cfg.InputExtension = ".txt"
	}
	if cfg.RejectsDirOverride == "" && cfg.StageRoot != "" {
		cfg.RejectsDirOverride = cfg.StageRoot + "/_rejects"
	}
	if cfg.EventsDirOverride == "" && cfg.StageRoot != "" {
		cfg.EventsDirOverride = cfg.StageRoot + "/_manifest/events"
	}
	if cfg.ManifestPathOverride == "" && cfg.StageRoot != "" {
		cfg.ManifestPathOverride = cfg.StageRoot + "/_manifest/manifest.parquet"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.RawRoot = getEnvString("CHIPSTAGE_RAW_ROOT", cfg.RawRoot)
	cfg.StageRoot = getEnvString("CHIPSTAGE_STAGE_ROOT", cfg.StageRoot)
	cfg.DerivedRoot = getEnvString("CHIPSTAGE_DERIVED_ROOT", cfg.DerivedRoot)
	cfg.CatalogPath = getEnvString("CHIPSTAGE_CATALOG_PATH", cfg.CatalogPath)
	cfg.LocalTimezone = getEnvString("CHIPSTAGE_LOCAL_TIMEZONE", cfg.LocalTimezone)
	cfg.WorkerCount = getEnvInt("CHIPSTAGE_WORKER_COUNT", cfg.WorkerCount)
	cfg.ThreadCap = getEnvInt("CHIPSTAGE_THREAD_CAP", cfg.ThreadCap)
	cfg.Force = getEnvBool("CHIPSTAGE_FORCE", cfg.Force)
	cfg.Strict = getEnvBool("CHIPSTAGE_STRICT", cfg.Strict)
	cfg.StrictColumns = getEnvBool("CHIPSTAGE_STRICT_COLUMNS", cfg.StrictColumns)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Validate checks the configuration's structural invariants: required
// paths present, worker-count in 1..16, timezone name resolvable. It also
// resolves and caches the *time.Location so callers never re-parse it.
func (cfg *Config) Validate() error {
	invalid := func(reason string) error {
		return stageerr.InvalidConfig("validate", reason)
	}

	if cfg.RawRoot == "" {
		return invalid("raw_root is required")
	}
	if cfg.StageRoot == "" {
		return invalid("stage_root is required")
	}
	if cfg.CatalogPath == "" {
		return invalid("catalog_path is required")
	}
	if cfg.WorkerCount < 1 || cfg.WorkerCount > 16 {
		return invalid(fmt.Sprintf("worker_count %d out of range [1,16]", cfg.WorkerCount))
	}

	loc, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		return invalid(fmt.Sprintf("unresolvable local_timezone %q", cfg.LocalTimezone)).Wrap(err)
	}
	cfg.localTZ = loc

	return nil
}

// LocalTZ returns the resolved timezone; Validate must have run first.
func (cfg *Config) LocalTZ() *time.Location {
	if cfg.localTZ == nil {
		return time.UTC
	}
	return cfg.localTZ
}

// RejectsDir, EventsDir, and ManifestPath expose the (possibly overridden)
// well-known output locations under StageRoot.
func (cfg *Config) RejectsDir() string  { return cfg.RejectsDirOverride }
func (cfg *Config) EventsDir() string   { return cfg.EventsDirOverride }
func (cfg *Config) ManifestPath() string { return cfg.ManifestPathOverride }
