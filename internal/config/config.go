// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Store backends accepted by STORE_BACKEND.
const (
	BackendAppwrite = "appwrite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds all importer configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source   SourceConfig
	Store    StoreConfig
	Target   TargetConfig
	Appwrite AppwriteConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Upload   UploadConfig
	Logging  LoggingConfig
}

// SourceConfig describes where the CSV comes from.
type SourceConfig struct {
	// Location is a local path, file:// URL or http(s):// URL (required)
	Location string `env:"CSV_SOURCE" required:"true"`

	// Timeout bounds the HTTP download of a remote CSV (default: 60s)
	Timeout time.Duration `env:"CSV_SOURCE_TIMEOUT" default:"60s"`

	// MaxFileSize is the maximum accepted CSV size in bytes (default: 100MB)
	MaxFileSize int64 `env:"CSV_MAX_FILE_SIZE" default:"104857600"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is one of appwrite, postgres, mongo, memory (default: appwrite)
	Backend string `env:"STORE_BACKEND" default:"appwrite"`
}

// TargetConfig addresses the collection documents are created in.
type TargetConfig struct {
	DatabaseID   string `env:"TARGET_DATABASE_ID" default:"vista_db"`
	CollectionID string `env:"TARGET_COLLECTION_ID" default:"profiles"`
}

// AppwriteConfig holds Appwrite server settings.
type AppwriteConfig struct {
	// Endpoint is the API root, e.g. https://cloud.appwrite.io/v1
	Endpoint string `env:"APPWRITE_ENDPOINT"`

	ProjectID string `env:"APPWRITE_PROJECT_ID"`

	// APIKey is a server key with documents.write scope
	APIKey string `env:"APPWRITE_API_KEY"`

	// Timeout is the per-request transport timeout (default: 30s)
	Timeout time.Duration `env:"APPWRITE_TIMEOUT" default:"30s"`

	// SelfSigned disables TLS verification for self-hosted servers (default: false)
	SelfSigned bool `env:"APPWRITE_SELF_SIGNED" default:"false"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres backend.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of open connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// AutoMigrate creates the documents table on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// MongoConfig holds MongoDB settings for the mongo backend.
type MongoConfig struct {
	URI string `env:"MONGO_URI"`

	// ConnectTimeout bounds the initial connection and ping (default: 10s)
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" default:"10s"`
}

// UploadConfig holds document upload settings.
type UploadConfig struct {
	// Concurrency is the number of create calls in flight (default: 1, strictly sequential)
	Concurrency int `env:"UPLOAD_CONCURRENCY" default:"1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
