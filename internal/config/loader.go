package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if a value cannot be parsed or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookup(envName, field.Tag.Get("envAlt"))
		if value == "" {
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the first non-empty value among the primary variable and
// its comma-separated alternates, in order.
func lookup(primary, alternates string) string {
	if v := strings.TrimSpace(os.Getenv(primary)); v != "" {
		return v
	}
	if alternates == "" {
		return ""
	}
	for _, name := range strings.Split(alternates, ",") {
		if v := strings.TrimSpace(os.Getenv(strings.TrimSpace(name))); v != "" {
			return v
		}
	}
	return ""
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// parseBool accepts the usual switch spellings on top of strconv's.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on", "y", "t":
		return true, nil
	case "0", "false", "no", "off", "n", "f":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" && c.Database.Host == "" {
		errs = append(errs, "DATABASE_URL or PGHOST is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PGPORT (%d) must be 1-65535", c.Database.Port))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Paths.Landing == "" {
		errs = append(errs, "LANDING_DIR must not be empty")
	}
	if c.Paths.Archive == "" {
		errs = append(errs, "ARCHIVE_DIR must not be empty")
	}
	if c.Paths.Error == "" {
		errs = append(errs, "ERROR_DIR must not be empty")
	}
	if c.Paths.Archive != "" && c.Paths.Archive == c.Paths.Error {
		errs = append(errs, "ARCHIVE_DIR and ERROR_DIR must differ")
	}
	if c.Paths.Landing != "" && (c.Paths.Landing == c.Paths.Archive || c.Paths.Landing == c.Paths.Error) {
		errs = append(errs, "LANDING_DIR must differ from ARCHIVE_DIR and ERROR_DIR")
	}

	switch strings.ToLower(c.Ingest.SkipAction) {
	case "leave", "archive":
	default:
		errs = append(errs, fmt.Sprintf("SKIP_ACTION (%q) must be one of: leave, archive", c.Ingest.SkipAction))
	}
	if c.Ingest.StagingTable == "" {
		errs = append(errs, "STAGING_TABLE must not be empty")
	}
	if c.Ingest.TransformFunction == "" {
		errs = append(errs, "TRANSFORM_FUNCTION must not be empty")
	}

	if c.Serve.Port <= 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Serve.Port))
	}
	if c.Serve.Schedule == "" {
		errs = append(errs, "SERVE_SCHEDULE must not be empty")
	}
	if c.Serve.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database password and URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	if c.Database.URL != "" {
		b.WriteString("Database: {URL: [MASKED]}, ")
	} else {
		b.WriteString(fmt.Sprintf("Database: {Host: %q, Port: %d, Name: %q, User: %q, Password: [MASKED]}, ",
			c.Database.Host, c.Database.Port, c.Database.Name, c.Database.User))
	}
	b.WriteString(fmt.Sprintf("Paths: {Landing: %q, Archive: %q, Error: %q, FailureLog: %q}, ",
		c.Paths.Landing, c.Paths.Archive, c.Paths.Error, c.Paths.FailureLogPath()))
	b.WriteString(fmt.Sprintf("Ingest: {Verbose: %v, SkipAction: %q}, ", c.Ingest.Verbose, c.Ingest.SkipAction))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q, TimeZone: %q}",
		c.Logging.Level, c.Logging.Format, c.Logging.TimeZone))
	b.WriteString("}")
	return b.String()
}
