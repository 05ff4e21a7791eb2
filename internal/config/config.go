package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	GBFS       GBFSConfig       `yaml:"gbfs" mapstructure:"gbfs"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures the HTTP scraper.
type FetchConfig struct {
	UserAgent          string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BreakerThreshold   int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs   int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	ProxyURL           string  `yaml:"proxy_url" mapstructure:"proxy_url"`
	ProxyEnabled       bool    `yaml:"proxy_enabled" mapstructure:"proxy_enabled"`
	InsecureSkipVerify bool    `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	Encoding           string  `yaml:"encoding" mapstructure:"encoding"`
	CacheTTLSecs       int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"` // 0 disables the persistent cache
}

// Timeout returns the request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// CacheTTL returns the persistent response cache TTL.
func (f FetchConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSecs) * time.Second
}

// GBFSConfig configures feed handling.
type GBFSConfig struct {
	Language   string `yaml:"language" mapstructure:"language"`
	JoinPolicy string `yaml:"join_policy" mapstructure:"join_policy"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RefreshSecs int      `yaml:"refresh_secs" mapstructure:"refresh_secs"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	Persist     bool     `yaml:"persist" mapstructure:"persist"`
}

// RefreshInterval returns how often serve updates each system.
func (s ServerConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshSecs) * time.Second
}

// CatalogConfig locates the system catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures staleness alerts in serve.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	StaleAfterSecs    int    `yaml:"stale_after_secs" mapstructure:"stale_after_secs"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// StaleAfter returns the age at which a system's stations count as stale.
func (m MonitoringConfig) StaleAfter() time.Duration {
	return time.Duration(m.StaleAfterSecs) * time.Second
}

// CheckInterval returns how often alerts are evaluated.
func (m MonitoringConfig) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalSecs) * time.Second
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables use the GBFS_ prefix, e.g. GBFS_STORE_DRIVER.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GBFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "gbfs-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 10000)
	v.SetDefault("fetch.rate_per_sec", 20.0)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 30)
	v.SetDefault("fetch.proxy_enabled", false)
	v.SetDefault("fetch.insecure_skip_verify", false)
	v.SetDefault("fetch.encoding", "utf-8")
	v.SetDefault("fetch.cache_ttl_secs", 0)
	v.SetDefault("gbfs.language", "en")
	v.SetDefault("gbfs.join_policy", "strict")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "gbfs.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.refresh_secs", 60)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.persist", false)
	v.SetDefault("catalog.path", "systems.yaml")
	v.SetDefault("monitoring.stale_after_secs", 300)
	v.SetDefault("monitoring.check_interval_secs", 60)

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

// Validate checks the settings a command needs. mode is "update", "serve"
// or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "update":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RefreshSecs <= 0 {
			errs = append(errs, "server.refresh_secs must be > 0")
		}
		if c.Monitoring.StaleAfterSecs < c.Server.RefreshSecs {
			errs = append(errs, "monitoring.stale_after_secs must be >= server.refresh_secs")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxRetries < 1 {
		errs = append(errs, "fetch.max_retries must be >= 1")
	}
	if c.Fetch.RatePerSec < 0 {
		errs = append(errs, "fetch.rate_per_sec must be >= 0")
	}
	if c.Fetch.CacheTTLSecs < 0 {
		errs = append(errs, "fetch.cache_ttl_secs must be >= 0")
	}
	switch strings.ToLower(c.GBFS.JoinPolicy) {
	case "", "strict", "lenient":
	default:
		errs = append(errs, "gbfs.join_policy must be strict or lenient")
	}
	switch strings.ToLower(c.Store.Driver) {
	case "", "sqlite", "postgres", "postgresql":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
