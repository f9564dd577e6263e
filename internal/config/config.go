package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Blob storage backends.
const (
	BlobBackendMinIO = "minio"
	BlobBackendLocal = "local"
)

// Config aggregates runtime configuration for the treedrive API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
	Log      LogConfig
	CORS     CORSConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AutoMigrate bool
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// StorageConfig selects where file contents live.
type StorageConfig struct {
	BlobBackend    string
	UploadDir      string
	MaxUploadBytes int64
	PresignTTL     time.Duration
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:            getString("TREEDRIVE_API_HOST", "0.0.0.0"),
			Port:            getInt("TREEDRIVE_API_PORT", 8080),
			ReadTimeout:     getDuration("TREEDRIVE_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("TREEDRIVE_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getDuration("TREEDRIVE_API_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("TREEDRIVE_API_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			Host:        getString("POSTGRES_HOST", "localhost"),
			Port:        getInt("POSTGRES_PORT", 5432),
			User:        getString("POSTGRES_USER", "treedrive_app"),
			Password:    getString("POSTGRES_PASSWORD", "change-me"),
			Database:    getString("POSTGRES_DB", "treedrive"),
			SSLMode:     strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			AutoMigrate: getBool("POSTGRES_AUTO_MIGRATE", true),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "treedrive"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "treedrive"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Storage: StorageConfig{
			BlobBackend:    strings.ToLower(getString("TREEDRIVE_BLOB_BACKEND", BlobBackendMinIO)),
			UploadDir:      getString("TREEDRIVE_UPLOAD_DIR", "uploads"),
			MaxUploadBytes: int64(getInt("TREEDRIVE_MAX_UPLOAD_BYTES", 100*1024*1024)),
			PresignTTL:     getDuration("TREEDRIVE_PRESIGN_TTL", 15*time.Minute),
		},
		Auth: loadAuthConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("TREEDRIVE_METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getString("LOG_LEVEL", "info")),
			Format: strings.ToLower(getString("LOG_FORMAT", "json")),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("TREEDRIVE_CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.BlobBackend {
	case BlobBackendMinIO, BlobBackendLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.Storage.BlobBackend))
	}
	if c.Storage.BlobBackend == BlobBackendLocal && strings.TrimSpace(c.Storage.UploadDir) == "" {
		errs = append(errs, errors.New("upload dir is required for the local blob backend"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if c.Auth.AccessTokenSecret == "" || c.Auth.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("jwt secrets must not be empty"))
	}
	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadAuthConfig() AuthConfig {
	cost := getInt("TREEDRIVE_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("TREEDRIVE_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		RefreshTokenSecret: getString("TREEDRIVE_JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("TREEDRIVE_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("TREEDRIVE_AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
