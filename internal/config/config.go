package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds persistent defaults loaded from config files.
type Config struct {
	Parse    ParseConfig    `yaml:"parse"`
	Export   ExportConfig   `yaml:"export"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ParseConfig holds parser defaults.
type ParseConfig struct {
	SessionMarker  string `yaml:"session_marker"`
	ChunkLines     int    `yaml:"chunk_lines"`
	ChunkThreshold int    `yaml:"chunk_threshold"`
	NoFilter       bool   `yaml:"no_filter"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Format         string `yaml:"format"`
	Redact         string `yaml:"redact"`
	RedactPatterns string `yaml:"redact_patterns"`
	GroupBy        string `yaml:"group_by"`
}

// MetricsConfig holds the metrics listener address.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultsConfig holds global defaults.
type DefaultsConfig struct {
	Timeout string `yaml:"timeout"`
	Verbose bool   `yaml:"verbose"`
}

// Load reads config from ~/.logvars/config.yaml then CWD .logvars.yaml.
// CWD config values override home config. Missing files are not errors.
// Environment variables (LOGVARS_*) override config file values.
func Load() *Config {
	cfg := &Config{}

	if home, err := os.UserHomeDir(); err == nil {
		_ = loadFile(filepath.Join(home, ".logvars", "config.yaml"), cfg)
	}

	_ = loadFile(".logvars.yaml", cfg)

	applyEnv(cfg)

	return cfg
}

// LoadFrom reads config from a specific path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func envBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOGVARS_SESSION_MARKER"); v != "" {
		cfg.Parse.SessionMarker = v
	}
	if v := os.Getenv("LOGVARS_CHUNK_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parse.ChunkLines = n
		}
	}
	if v := os.Getenv("LOGVARS_CHUNK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parse.ChunkThreshold = n
		}
	}
	if v := os.Getenv("LOGVARS_NO_FILTER"); v != "" {
		cfg.Parse.NoFilter = envBool(v)
	}
	if v := os.Getenv("LOGVARS_FORMAT"); v != "" {
		cfg.Export.Format = v
	}
	if v := os.Getenv("LOGVARS_REDACT"); v != "" {
		cfg.Export.Redact = v
	}
	if v := os.Getenv("LOGVARS_REDACT_PATTERNS"); v != "" {
		cfg.Export.RedactPatterns = v
	}
	if v := os.Getenv("LOGVARS_GROUP_BY"); v != "" {
		cfg.Export.GroupBy = v
	}
	if v := os.Getenv("LOGVARS_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LOGVARS_TIMEOUT"); v != "" {
		cfg.Defaults.Timeout = v
	}
	if v := os.Getenv("LOGVARS_VERBOSE"); v != "" {
		cfg.Defaults.Verbose = envBool(v)
	}
}
