package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Postgis PostgisConfig `yaml:"postgis" mapstructure:"postgis"`
	Overlay OverlayConfig `yaml:"overlay" mapstructure:"overlay"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local run store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgisConfig configures the optional PostGIS feature source/sink.
type PostgisConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	GeomColumn  string `yaml:"geom_column" mapstructure:"geom_column"`
}

// OverlayConfig configures interpolation defaults.
type OverlayConfig struct {
	Workers     int  `yaml:"workers" mapstructure:"workers"`
	Strict      bool `yaml:"strict" mapstructure:"strict"`
	DefaultSRID int  `yaml:"default_srid" mapstructure:"default_srid"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	RatePerSec        float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst         int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	ShutdownGraceSecs int      `yaml:"shutdown_grace_secs" mapstructure:"shutdown_grace_secs"`
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
	v.SetEnvPrefix("OVERLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "overlay.db")
	v.SetDefault("postgis.geom_column", "geom")
	v.SetDefault("overlay.workers", 0)
	v.SetDefault("overlay.strict", false)
	v.SetDefault("overlay.default_srid", 4326)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_sec", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", int64(64<<20))
	v.SetDefault("server.shutdown_grace_secs", 10)

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
