/*
Package configs is responsible for loading and parsing the application's configuration settings.

Values come from environment variables. When CONFIG_FILE names a YAML file, it is
read first and every environment variable that is set overrides the file value.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const devJWTSecret = "mentormatch_insecure_dev_secret_change_me"

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment   string `yaml:"environment"`
	Port          int    `yaml:"port"`
	PowDifficulty int    `yaml:"pow_difficulty"`
	LogLevel      string `yaml:"log_level"`

	// Security Settings
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"`

	// S3 Storage Settings. Resource uploads are disabled when the bucket is empty.
	S3BucketName      string `yaml:"s3_bucket_name"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`

	// Database Settings. Empty in development selects in-memory stores.
	DatabaseDSN string `yaml:"database_url"`

	// Realtime Settings
	TypingTimeoutMS int `yaml:"typing_timeout_ms"`
	ActivityLogSize int `yaml:"activity_log_size"`

	// Notification Settings
	NotificationRetentionDays int    `yaml:"notification_retention_days"`
	RetentionSchedule         string `yaml:"notification_retention_cron"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// StorageEnabled reports whether S3 settings are complete.
func (c *AppConfig) StorageEnabled() bool {
	return c.S3BucketName != "" && c.S3Endpoint != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// TypingTimeout returns the typing indicator expiry window.
func (c *AppConfig) TypingTimeout() time.Duration {
	return time.Duration(c.TypingTimeoutMS) * time.Millisecond
}

// NotificationRetention returns how long read notifications are kept.
func (c *AppConfig) NotificationRetention() time.Duration {
	return time.Duration(c.NotificationRetentionDays) * 24 * time.Hour
}

// LoadConfig reads the optional YAML file, applies environment overrides and
// defaults, and validates the result.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// --- General Server Settings ---
	cfg.Environment = envString("ENVIRONMENT", cfg.Environment, "development")
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel, "info")

	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port, 8080); err != nil {
		return nil, err
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	if cfg.PowDifficulty, err = envInt("POW_DIFFICULTY", cfg.PowDifficulty, 4); err != nil {
		return nil, err
	}
	if cfg.PowDifficulty < 0 || cfg.PowDifficulty > 64 {
		return nil, fmt.Errorf("POW_DIFFICULTY %d must be between 0 and 64", cfg.PowDifficulty)
	}

	// --- Security Settings ---
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		cfg.AllowedOrigins = splitList(originsStr)
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{}
	}

	cfg.JWTSecret = envString("JWT_SECRET", cfg.JWTSecret, "")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = devJWTSecret
	}

	// --- S3 Storage Settings ---
	cfg.S3BucketName = envString("S3_BUCKET_NAME", cfg.S3BucketName, "")
	cfg.S3Endpoint = envString("S3_ENDPOINT", cfg.S3Endpoint, "")
	cfg.S3AccessKeyID = envString("S3_ACCESS_KEY_ID", cfg.S3AccessKeyID, "")
	cfg.S3SecretAccessKey = envString("S3_SECRET_ACCESS_KEY", cfg.S3SecretAccessKey, "")

	// --- Database Settings ---
	cfg.DatabaseDSN = envString("DATABASE_URL", cfg.DatabaseDSN, "")
	if cfg.DatabaseDSN == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
	}

	// --- Realtime Settings ---
	if cfg.TypingTimeoutMS, err = envInt("TYPING_TIMEOUT_MS", cfg.TypingTimeoutMS, 3000); err != nil {
		return nil, err
	}
	if cfg.TypingTimeoutMS <= 0 {
		return nil, fmt.Errorf("TYPING_TIMEOUT_MS must be positive, got %d", cfg.TypingTimeoutMS)
	}

	if cfg.ActivityLogSize, err = envInt("ACTIVITY_LOG_SIZE", cfg.ActivityLogSize, 200); err != nil {
		return nil, err
	}
	if cfg.ActivityLogSize <= 0 {
		return nil, fmt.Errorf("ACTIVITY_LOG_SIZE must be positive, got %d", cfg.ActivityLogSize)
	}

	// --- Notification Settings ---
	if cfg.NotificationRetentionDays, err = envInt("NOTIFICATION_RETENTION_DAYS", cfg.NotificationRetentionDays, 30); err != nil {
		return nil, err
	}
	cfg.RetentionSchedule = envString("NOTIFICATION_RETENTION_CRON", cfg.RetentionSchedule, "@daily")

	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// envString returns the env value if set, else current, else def.
func envString(key, current, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if current != "" {
		return current
	}
	return def
}

func envInt(key string, current, def int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
		}
		return n, nil
	}
	if current != 0 {
		return current, nil
	}
	return def, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
