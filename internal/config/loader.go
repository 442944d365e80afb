package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// FromEnv reads configuration from environment variables without validating it.
// Missing required values are left empty so command-line flags can still supply
// them; callers must run Validate before use.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			value = defaultVal
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

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
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
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// requiredFields lists struct fields tagged required:"true" whose value is empty.
func requiredFields(v reflect.Value) []string {
	var missing []string
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			missing = append(missing, requiredFields(fieldVal)...)
			continue
		}
		if field.Tag.Get("required") == "true" && fieldVal.IsZero() {
			missing = append(missing, field.Tag.Get("env"))
		}
	}

	return missing
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	for _, name := range requiredFields(reflect.ValueOf(c).Elem()) {
		errs = append(errs, fmt.Sprintf("required environment variable %s is not set", name))
	}

	// Source validation
	if c.Source.Timeout <= 0 {
		errs = append(errs, "CSV_SOURCE_TIMEOUT must be positive")
	}
	if c.Source.MaxFileSize <= 0 {
		errs = append(errs, "CSV_MAX_FILE_SIZE must be positive")
	}

	// Target validation
	if c.Target.DatabaseID == "" {
		errs = append(errs, "TARGET_DATABASE_ID must not be empty")
	}
	if c.Target.CollectionID == "" {
		errs = append(errs, "TARGET_COLLECTION_ID must not be empty")
	}

	// Backend-specific validation
	switch strings.ToLower(c.Store.Backend) {
	case BackendAppwrite:
		if c.Appwrite.Endpoint == "" {
			errs = append(errs, "APPWRITE_ENDPOINT is required for the appwrite backend")
		} else if u, err := url.Parse(c.Appwrite.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("APPWRITE_ENDPOINT (%q) must be an absolute URL", c.Appwrite.Endpoint))
		}
		if c.Appwrite.ProjectID == "" {
			errs = append(errs, "APPWRITE_PROJECT_ID is required for the appwrite backend")
		}
		if c.Appwrite.APIKey == "" {
			errs = append(errs, "APPWRITE_API_KEY is required for the appwrite backend")
		}
		if c.Appwrite.Timeout <= 0 {
			errs = append(errs, "APPWRITE_TIMEOUT must be positive")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, "MONGO_URI is required for the mongo backend")
		}
		if c.Mongo.ConnectTimeout <= 0 {
			errs = append(errs, "MONGO_CONNECT_TIMEOUT must be positive")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND (%q) must be one of: appwrite, postgres, mongo, memory", c.Store.Backend))
	}

	// Upload validation
	if c.Upload.Concurrency <= 0 {
		errs = append(errs, "UPLOAD_CONCURRENCY must be positive")
	}

	// Logging validation
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
// Credentials and connection strings are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {Location: %q, MaxFileSize: %d}, ", c.Source.Location, c.Source.MaxFileSize))
	b.WriteString(fmt.Sprintf("Store: {Backend: %q}, ", c.Store.Backend))
	b.WriteString(fmt.Sprintf("Target: {DatabaseID: %q, CollectionID: %q}, ", c.Target.DatabaseID, c.Target.CollectionID))
	b.WriteString(fmt.Sprintf("Appwrite: {Endpoint: %q, ProjectID: %q, APIKey: %s}, ",
		c.Appwrite.Endpoint, c.Appwrite.ProjectID, mask(c.Appwrite.APIKey)))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d}, ", mask(c.Database.URL), c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Mongo: {URI: %s}, ", mask(c.Mongo.URI)))
	b.WriteString(fmt.Sprintf("Upload: {Concurrency: %d}, ", c.Upload.Concurrency))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
