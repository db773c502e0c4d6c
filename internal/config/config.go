// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Log      LogConfig
}

// ServerConfig holds settings of the local HTTP API.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds local store settings.
// Driver is "sqlite" (default, a file on the device) or "postgres".
type DatabaseConfig struct {
	Driver        string
	Path          string
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	SQLMigrations bool
	Debug         bool
}

// RemoteConfig points at the remote order/catalog service.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SyncConfig holds the background synchronization settings.
type SyncConfig struct {
	ConnectivityInterval time.Duration
	QueueInterval        time.Duration
	MaxReservationTries  int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.IsPostgres() {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
		)
	}
	return d.Path
}

// IsPostgres reports whether the postgres driver is configured.
func (d DatabaseConfig) IsPostgres() bool {
	return strings.EqualFold(d.Driver, "postgres")
}

// Load reads configuration from environment variables.
// It uses sensible defaults for a single device.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8090"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", "sqlite"),
			Path:          getEnv("DB_PATH", "pedidos.db"),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "pedidos"),
			Password:      getEnv("DB_PASSWORD", "pedidos"),
			DBName:        getEnv("DB_NAME", "pedidos"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			SQLMigrations: getEnvBool("MIGRATIONS", true),
			Debug:         getEnvBool("DB_DEBUG", false),
		},
		Remote: RemoteConfig{
			BaseURL: strings.TrimRight(getEnv("REMOTE_BASE_URL", "http://localhost:8000"), "/"),
			Timeout: getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		},
		Sync: SyncConfig{
			ConnectivityInterval: getEnvDuration("CONNECTIVITY_INTERVAL", 30*time.Second),
			QueueInterval:        getEnvDuration("QUEUE_SYNC_INTERVAL", time.Minute),
			MaxReservationTries:  getEnvInt("RESERVATION_MAX_ATTEMPTS", 50),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
