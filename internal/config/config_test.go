package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "schemaproof.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30, cfg.Signature.SampleRows)
	assert.Equal(t, 10_000, cfg.Signature.MaxColumns)
	assert.Equal(t, int64(100<<20), cfg.Signature.TailMaxBytes)
	assert.Equal(t, "#", cfg.Signature.Comment)
	assert.Equal(t, 50, cfg.Outlier.TopN)
	assert.Equal(t, 1000, cfg.Outlier.Cap)
	assert.False(t, cfg.Outlier.StrictNulls)
	assert.True(t, cfg.Solver.EarlyStop)
	assert.Equal(t, 4, cfg.Scan.Concurrency)
	assert.Equal(t, detect.DefaultNullSentinels(), cfg.Detect.NullSentinels)
	assert.Equal(t, detect.DefaultBooleanPatterns(), cfg.Detect.BooleanPatterns)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/schemaproof
log:
  level: debug
  format: console
signature:
  sample_rows: 90
  date_format_hint: eu
detect:
  null_sentinels: ["", "NULL", "?"]
outlier:
  strict_nulls: true
scan:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 90, cfg.Signature.SampleRows)
	assert.Equal(t, model.DateFormatEU, cfg.Signature.DateFormatHint)
	assert.Equal(t, []string{"", "NULL", "?"}, cfg.Detect.NullSentinels)
	assert.True(t, cfg.Outlier.StrictNulls)
	assert.Equal(t, 8, cfg.Scan.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 10_000, cfg.Signature.MaxColumns)

	det := cfg.Detector()
	assert.Equal(t, model.TypeNull, det.Detect("?"))
	assert.Equal(t, model.TypeString, det.Detect("N/A"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: memory
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("SCHEMAPROOF_STORE_DRIVER", "postgres")
	t.Setenv("SCHEMAPROOF_LOG_LEVEL", "warn")
	t.Setenv("SCHEMAPROOF_SOLVER_EARLY_STOP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Solver.EarlyStop)
	assert.False(t, cfg.BatchOptions().EarlyStop)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "schemaproof.db"
	cfg.Server.Port = 8080
	cfg.Scan.Concurrency = 4
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "scan defaults", mode: "scan"},
		{name: "serve defaults", mode: "serve"},
		{name: "memory store needs no url", mode: "drift", mutate: func(c *Config) {
			c.Store.Driver = "memory"
			c.Store.DatabaseURL = ""
		}},
		{name: "missing url", mode: "drift", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: "store.database_url is required"},
		{name: "bad driver", mode: "migrate", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver must be"},
		{name: "scan ignores store", mode: "scan", mutate: func(c *Config) { c.Store.Driver = "mysql" }},
		{name: "bad port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port must be > 0"},
		{name: "bad hint", mode: "scan", mutate: func(c *Config) { c.Signature.DateFormatHint = "iso" }, wantErr: "date_format_hint"},
		{name: "concurrency", mode: "solve", mutate: func(c *Config) { c.Scan.Concurrency = 0 }, wantErr: "scan.concurrency must be between 1 and 64"},
		{name: "unknown mode", mode: "unknown", wantErr: "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Server.Port = -1

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestRemote(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.TimeoutSecs = 5
	r := cfg.Remote()
	assert.NotNil(t, r.HTTP)
	assert.NotNil(t, r.FTP)
}
