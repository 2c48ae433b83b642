// Package config reads typeflow.yaml, with TYPEFLOW_* environment variables
// (optionally from a .env file) taking precedence.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/service"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file
const DefaultPath = "typeflow.yaml"

type Config struct {
	// Signatures are declaration files loaded before any program
	Signatures []string `yaml:"signatures"`
	Log        struct {
		Level    string   `yaml:"level"`
		Sections []string `yaml:"sections"`
	} `yaml:"log"`
	Analysis struct {
		AliasDepth       int   `yaml:"alias_depth"`
		DiagnosticLimit  int   `yaml:"diagnostic_limit"`
		MaxRuns          int   `yaml:"max_runs"`
		SubclassDispatch *bool `yaml:"subclass_dispatch"`
	} `yaml:"analysis"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
}

// Load reads the config at path. A missing file is not an error: defaults and
// the environment apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, errors.Wrap(err, "reading config")
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("TYPEFLOW_SIGNATURES"); v != "" {
		c.Signatures = strings.Split(v, string(os.PathListSeparator))
	}
	if v := getenv("TYPEFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("TYPEFLOW_LOG_SECTIONS"); v != "" {
		c.Log.Sections = strings.Split(v, ",")
	}
	ints := []struct {
		env string
		dst *int
	}{
		{"TYPEFLOW_ALIAS_DEPTH", &c.Analysis.AliasDepth},
		{"TYPEFLOW_DIAGNOSTIC_LIMIT", &c.Analysis.DiagnosticLimit},
		{"TYPEFLOW_MAX_RUNS", &c.Analysis.MaxRuns},
		{"TYPEFLOW_CACHE_SIZE", &c.Cache.Size},
	}
	for _, i := range ints {
		v := getenv(i.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", i.env)
		}
		*i.dst = n
	}
	if v := getenv("TYPEFLOW_SUBCLASS_DISPATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "parsing TYPEFLOW_SUBCLASS_DISPATCH")
		}
		c.Analysis.SubclassDispatch = &b
	}
	return nil
}

// LogLevel is the configured level, Warn when unset
func (c *Config) LogLevel() (slog.Level, error) {
	if c.Log.Level == "" {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", c.Log.Level)
	}
	return l, nil
}

// ServiceOptions are the defaults overridden by whatever the config sets
func (c *Config) ServiceOptions() service.Options {
	opts := service.DefaultOptions()
	opts.Analysis = c.analysisOptions()
	if c.Cache.Size > 0 {
		opts.CacheSize = c.Cache.Size
	}
	return opts
}

func (c *Config) analysisOptions() core.Options {
	opts := core.DefaultOptions()
	if c.Analysis.AliasDepth > 0 {
		opts.AliasDepthLimit = c.Analysis.AliasDepth
	}
	if c.Analysis.DiagnosticLimit > 0 {
		opts.DiagnosticLimit = c.Analysis.DiagnosticLimit
	}
	if c.Analysis.MaxRuns > 0 {
		opts.MaxRuns = c.Analysis.MaxRuns
	}
	if c.Analysis.SubclassDispatch != nil {
		opts.SubclassDispatch = *c.Analysis.SubclassDispatch
	}
	return opts
}
