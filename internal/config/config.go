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
	Env       string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Sync      SyncConfig
	Alerts    AlertsConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// KafkaConfig holds push-notification broker configuration. Brokers may be
// empty, in which case push intents are logged instead of published.
type KafkaConfig struct {
	Brokers   []string
	PushTopic string
}

// SyncConfig holds reconciliation engine configuration
type SyncConfig struct {
	OpTimeout     time.Duration
	RetentionDays int
}

// AlertsConfig holds alert scheduler configuration
type AlertsConfig struct {
	ThresholdInterval time.Duration
	ExpiryInterval    time.Duration
	OutboxInterval    time.Duration
	ExpiryHorizonDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "dukago"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Kafka: KafkaConfig{
			Brokers:   brokers,
			PushTopic: getEnv("KAFKA_PUSH_TOPIC", "dukago.push"),
		},
		Sync: SyncConfig{
			OpTimeout:     getDuration("SYNC_OP_TIMEOUT", 5*time.Second),
			RetentionDays: getInt("SYNC_RETENTION_DAYS", 30),
		},
		Alerts: AlertsConfig{
			ThresholdInterval: getDuration("ALERT_THRESHOLD_INTERVAL", time.Hour),
			ExpiryInterval:    getDuration("ALERT_EXPIRY_INTERVAL", 24*time.Hour),
			OutboxInterval:    getDuration("NOTIFY_OUTBOX_INTERVAL", 15*time.Second),
			ExpiryHorizonDays: getInt("ALERT_EXPIRY_HORIZON_DAYS", 7),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt gets an integer environment variable with default value
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDuration gets a duration environment variable with default value
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
