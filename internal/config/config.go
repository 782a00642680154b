// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath             string `mapstructure:"DB_SQLITE_PATH"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL                 string `mapstructure:"REDIS_URL"`
	AllowedOrigins           string `mapstructure:"ALLOWED_ORIGINS"`
	RateLimitWritesPerMinute int    `mapstructure:"RATE_LIMIT_WRITES_PER_MINUTE"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"

	defaultDBPassword = "password"
)

// LoadConfig loads application configuration from .env, config.yml, an
// optional config.<APP_ENV>.yml profile and environment variables, in
// increasing precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.yml: %w", err)
		}
	}

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config.%s.yml: %w", env, err)
			}
		} else {
			slog.Info("loaded profile-specific configuration", "file", "config."+env+".yml")
		}
	}

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postdesk")
	viper.SetDefault("DB_PASSWORD", defaultDBPassword)
	viper.SetDefault("DB_NAME", "postdesk")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "postdesk.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_SCHEMA_MODE", SchemaModeHybrid)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("RATE_LIMIT_WRITES_PER_MINUTE", 60)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Origins splits ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.DBDriver == DriverSQLite && c.DBSQLitePath == "" {
		return errors.New("DB_SQLITE_PATH is required when DB_DRIVER is sqlite")
	}

	switch c.DBSchemaMode {
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto:
	default:
		return fmt.Errorf("DB_SCHEMA_MODE must be one of hybrid, sql, auto, got %q", c.DBSchemaMode)
	}

	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 || c.DBConnMaxLifetimeMinutes < 0 {
		return errors.New("database pool settings must not be negative")
	}
	if c.RateLimitWritesPerMinute < 0 {
		return errors.New("RATE_LIMIT_WRITES_PER_MINUTE must not be negative")
	}
	if c.TracingSamplerRatio < 0 || c.TracingSamplerRatio > 1 {
		return errors.New("TRACING_SAMPLER_RATIO must be between 0 and 1")
	}
	switch c.TracingExporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("TRACING_EXPORTER must be stdout or otlp, got %q", c.TracingExporter)
	}

	if c.IsProduction() {
		if c.DBDriver == DriverSQLite {
			return errors.New("DB_DRIVER sqlite is not allowed in production")
		}
		if c.DBPassword == defaultDBPassword || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		for _, o := range c.Origins() {
			if o == "*" {
				return errors.New("ALLOWED_ORIGINS must not contain '*' in production")
			}
		}
	}

	return nil
}
