// Package config provides centralized configuration management for the ingester.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// A loaded Config is a plain value: build it once in main and pass the
// sections each component needs by parameter.
package config

import (
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // zone names resolve on hosts without a zoneinfo database
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Paths    PathsConfig
	Ingest   IngestConfig
	Serve    ServeConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
//
// URL wins when set. Otherwise the connection is assembled from the parts,
// each of which falls back through the libpq names, the POSTGRES_* names and
// finally the DB_* names.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`

	Host     string `env:"PGHOST" envAlt:"POSTGRES_HOST,DB_HOST" default:"localhost"`
	Port     int    `env:"PGPORT" envAlt:"POSTGRES_PORT,DB_PORT" default:"5432"`
	Name     string `env:"PGDATABASE" envAlt:"POSTGRES_DB,DB_NAME" default:"postgres"`
	User     string `env:"PGUSER" envAlt:"POSTGRES_USER,DB_USER" default:"postgres"`
	Password string `env:"PGPASSWORD" envAlt:"POSTGRES_PASSWORD,DB_PASSWORD"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// PathsConfig holds the directories the pipeline reads from and writes to.
// Each directory serves exactly one purpose.
type PathsConfig struct {
	Landing string `env:"LANDING_DIR" default:"landing_zone"`
	Archive string `env:"ARCHIVE_DIR" default:"archive"`
	Error   string `env:"ERROR_DIR" default:"error"`
	Log     string `env:"LOG_DIR" default:"logs"`

	// FailureLog defaults to <LOG_DIR>/failures.log
	FailureLog string `env:"FAILURE_LOG_FILE"`
}

// IngestConfig holds pipeline behaviour settings.
type IngestConfig struct {
	// Verbose logs full failure detail instead of the reason tag only (default: true)
	Verbose bool `env:"VERBOSE_LOGS" default:"true"`

	// SkipAction decides what happens to already-ingested files: leave or archive (default: leave)
	SkipAction string `env:"SKIP_ACTION" default:"leave"`

	StagingTable      string `env:"STAGING_TABLE" default:"staging_temperature_raw"`
	TransformFunction string `env:"TRANSFORM_FUNCTION" default:"elt_transform"`
}

// ServeConfig holds settings for the long-running agent mode.
type ServeConfig struct {
	// RunAsAgent makes the bare command serve instead of running a single pass
	RunAsAgent bool `env:"RUN_AS_AGENT" default:"false"`

	// Schedule is a cron spec for directory passes (default: @every 1m)
	Schedule string `env:"SERVE_SCHEDULE" default:"@every 1m"`

	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// APIKeys guard the /api routes; empty leaves them open
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// TimeZone is an IANA zone name used for console timestamps (default: UTC)
	TimeZone string `env:"TZ" envAlt:"TIMEZONE" default:"UTC"`
}

// DSN returns the connection string for pgx.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	return u.String()
}

// FailureLogPath returns the failure log file, defaulting into the log directory.
func (c PathsConfig) FailureLogPath() string {
	if c.FailureLog != "" {
		return c.FailureLog
	}
	return filepath.Join(c.Log, "failures.log")
}

// Addr returns the server listen address in host:port format.
func (c ServeConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Location returns the configured time zone, or UTC when the name is
// empty or unknown.
func (c LoggingConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
