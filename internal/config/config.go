package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/outlier"
	"github.com/sells-group/schemaproof/internal/signature"
	"github.com/sells-group/schemaproof/internal/solver"
)

// Config holds the full application configuration.
type Config struct {
	Detect    detect.Config     `yaml:"detect" mapstructure:"detect"`
	Signature signature.Options `yaml:"signature" mapstructure:"signature"`
	Outlier   outlier.Options   `yaml:"outlier" mapstructure:"outlier"`
	Solver    SolverConfig      `yaml:"solver" mapstructure:"solver"`
	Scan      ScanConfig        `yaml:"scan" mapstructure:"scan"`
	Fetch     FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig       `yaml:"store" mapstructure:"store"`
	Server    ServerConfig      `yaml:"server" mapstructure:"server"`
	Log       LogConfig         `yaml:"log" mapstructure:"log"`
}

// SolverConfig configures multi-file constraint solving.
type SolverConfig struct {
	EarlyStop bool `yaml:"early_stop" mapstructure:"early_stop"`
}

// ScanConfig configures corpus scanning.
type ScanConfig struct {
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
	WorkDir       string `yaml:"work_dir" mapstructure:"work_dir"`
	MaxZIPEntries int    `yaml:"max_zip_entries" mapstructure:"max_zip_entries"`
	MaxEntryBytes int64  `yaml:"max_entry_bytes" mapstructure:"max_entry_bytes"`
	Outliers      bool   `yaml:"outliers" mapstructure:"outliers"`
}

// FetchConfig configures remote corpus downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	FTPUser     string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string  `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// StoreConfig configures the drift store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCHEMAPROOF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("detect.null_sentinels", detect.DefaultNullSentinels())
	v.SetDefault("detect.boolean_patterns", detect.DefaultBooleanPatterns())
	v.SetDefault("signature.sample_rows", signature.DefaultSampleRows)
	v.SetDefault("signature.max_columns", signature.DefaultMaxColumns)
	v.SetDefault("signature.tail_max_bytes", signature.DefaultTailMaxBytes)
	v.SetDefault("signature.comment", signature.DefaultComment)
	v.SetDefault("signature.date_format_hint", "")
	v.SetDefault("signature.encoding_override", "")
	v.SetDefault("outlier.top_n", outlier.DefaultTopN)
	v.SetDefault("outlier.cap", outlier.DefaultCap)
	v.SetDefault("outlier.strict_nulls", false)
	v.SetDefault("outlier.comment", signature.DefaultComment)
	v.SetDefault("solver.early_stop", true)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.work_dir", "")
	v.SetDefault("scan.max_zip_entries", 10_000)
	v.SetDefault("scan.max_entry_bytes", int64(4)<<30)
	v.SetDefault("scan.outliers", false)
	v.SetDefault("fetch.user_agent", "schemaproof/1.0")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_host", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "schemaproof.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", int64(256)<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: scan,
// solve, drift, serve, migrate.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scan", "solve":
	case "drift", "migrate":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Signature.DateFormatHint {
	case "", model.DateFormatUS, model.DateFormatEU:
	default:
		errs = append(errs, fmt.Sprintf("signature.date_format_hint must be us or eu, got %q", c.Signature.DateFormatHint))
	}
	if c.Signature.SampleRows < 0 {
		errs = append(errs, "signature.sample_rows must be >= 0")
	}
	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 64 {
		errs = append(errs, "scan.concurrency must be between 1 and 64")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or memory, got %q", c.Store.Driver))
	}
	return errs
}

// Detector builds the type detector from the detect tables.
func (c *Config) Detector() *detect.Detector {
	return detect.New(c.Detect)
}

// BatchOptions returns the solver options for a multi-file solve.
func (c *Config) BatchOptions() solver.BatchOptions {
	return solver.BatchOptions{
		EarlyStop: c.Solver.EarlyStop,
		Signature: c.Signature,
		Comment:   c.Signature.Comment,
	}
}

// Remote builds the HTTP and FTP fetchers for remote corpus entries.
func (c *Config) Remote() *fetcher.Remote {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	return &fetcher.Remote{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:   c.Fetch.UserAgent,
			Timeout:     timeout,
			MaxRetries:  c.Fetch.MaxRetries,
			RatePerHost: c.Fetch.RatePerHost,
			Burst:       c.Fetch.Burst,
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout:  timeout,
			User:     c.Fetch.FTPUser,
			Password: c.Fetch.FTPPassword,
		}),
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
