package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
signatures: [sig/app.sig.yaml]
log:
  level: debug
  sections: [service, loader]
analysis:
  alias_depth: 2
  diagnostic_limit: 10
  subclass_dispatch: false
cache:
  size: 16
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"sig/app.sig.yaml"}, cfg.Signatures)
	assert.Equal(t, []string{"service", "loader"}, cfg.Log.Sections)
	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	opts := cfg.ServiceOptions()
	assert.Equal(t, 2, opts.Analysis.AliasDepthLimit)
	assert.Equal(t, 10, opts.Analysis.DiagnosticLimit)
	assert.False(t, opts.Analysis.SubclassDispatch)
	assert.Equal(t, 0, opts.Analysis.MaxRuns)
	assert.Equal(t, 16, opts.CacheSize)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
	opts := cfg.ServiceOptions()
	assert.Equal(t, 5, opts.Analysis.AliasDepthLimit)
	assert.True(t, opts.Analysis.SubclassDispatch)
}

func TestEnvironmentOverrides(t *testing.T) {
	env := map[string]string{
		"TYPEFLOW_LOG_LEVEL":         "error",
		"TYPEFLOW_LOG_SECTIONS":      "box,ast",
		"TYPEFLOW_MAX_RUNS":          "1000",
		"TYPEFLOW_SUBCLASS_DISPATCH": "false",
	}
	cfg := &Config{}
	cfg.Log.Level = "debug"
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, []string{"box", "ast"}, cfg.Log.Sections)
	assert.Equal(t, 1000, cfg.ServiceOptions().Analysis.MaxRuns)
	assert.False(t, cfg.ServiceOptions().Analysis.SubclassDispatch)
}

func TestBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"integer", map[string]string{"TYPEFLOW_CACHE_SIZE": "lots"}},
		{"bool", map[string]string{"TYPEFLOW_SUBCLASS_DISPATCH": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			assert.Error(t, cfg.applyEnv(func(k string) string { return tt.env[k] }))
		})
	}

	_, err := Load(writeConfig(t, "log: [not, a, mapping]"))
	assert.Error(t, err)

	cfg := &Config{}
	cfg.Log.Level = "loud"
	_, err = cfg.LogLevel()
	assert.Error(t, err)
}
