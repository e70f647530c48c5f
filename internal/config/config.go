package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Detection DetectionConfig
	Alert     AlertConfig
	Worker    WorkerConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// DetectionConfig contains anomaly scanner thresholds and windows.
// Defaults preserve the documented scanner behavior.
type DetectionConfig struct {
	NewEndpointWindow     time.Duration
	RateLimitWindow       time.Duration
	RateLimitThreshold    int64
	ErrorSpikeWindow      time.Duration
	ErrorSpikeRate        float64
	ErrorSpikeMinRequests int64
	SuspiciousWindow      time.Duration
	SuspiciousCountries   []string
}

// AlertConfig contains alert delivery configuration
type AlertConfig struct {
	EmailProvider   string // resend or mailgun
	EmailFrom       string
	ResendAPIKey    string
	MailgunAPIKey   string
	MailgunDomain   string
	DeliveryTimeout time.Duration
}

// WorkerConfig contains sweep scheduling configuration
type WorkerConfig struct {
	DetectionSchedule string
	AlertSchedule     string
	AlertRecency      time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "apisentinel"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./data.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Detection: DetectionConfig{
			NewEndpointWindow:     getEnvAsDuration("DETECT_NEW_ENDPOINT_WINDOW", time.Hour),
			RateLimitWindow:       getEnvAsDuration("DETECT_RATE_LIMIT_WINDOW", time.Minute),
			RateLimitThreshold:    int64(getEnvAsInt("DETECT_RATE_LIMIT_THRESHOLD", 100)),
			ErrorSpikeWindow:      getEnvAsDuration("DETECT_ERROR_SPIKE_WINDOW", 5*time.Minute),
			ErrorSpikeRate:        getEnvAsFloat("DETECT_ERROR_SPIKE_RATE", 0.2),
			ErrorSpikeMinRequests: int64(getEnvAsInt("DETECT_ERROR_SPIKE_MIN_REQUESTS", 10)),
			SuspiciousWindow:      getEnvAsDuration("DETECT_SUSPICIOUS_WINDOW", 24*time.Hour),
			SuspiciousCountries:   getEnvAsList("DETECT_SUSPICIOUS_COUNTRIES", []string{"KP", "IR", "SY", "CU"}),
		},
		Alert: AlertConfig{
			EmailProvider:   getEnv("EMAIL_PROVIDER", "resend"),
			EmailFrom:       getEnv("EMAIL_FROM", "alerts@apisentinel.com"),
			ResendAPIKey:    getEnv("RESEND_API_KEY", ""),
			MailgunAPIKey:   getEnv("MAILGUN_API_KEY", ""),
			MailgunDomain:   getEnv("MAILGUN_DOMAIN", ""),
			DeliveryTimeout: getEnvAsDuration("ALERT_DELIVERY_TIMEOUT", 5*time.Second),
		},
		Worker: WorkerConfig{
			DetectionSchedule: getEnv("WORKER_DETECTION_SCHEDULE", "@every 5m"),
			AlertSchedule:     getEnv("WORKER_ALERT_SCHEDULE", "@every 1m"),
			AlertRecency:      getEnvAsDuration("WORKER_ALERT_RECENCY", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Alert.EmailProvider != "resend" && c.Alert.EmailProvider != "mailgun" {
		return fmt.Errorf("unsupported email provider: %s", c.Alert.EmailProvider)
	}

	if c.Detection.RateLimitThreshold < 1 {
		return fmt.Errorf("rate limit threshold must be positive: %d", c.Detection.RateLimitThreshold)
	}

	if c.Detection.ErrorSpikeRate <= 0 || c.Detection.ErrorSpikeRate > 1 {
		return fmt.Errorf("error spike rate must be in (0, 1]: %f", c.Detection.ErrorSpikeRate)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, strings.ToUpper(trimmed))
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
