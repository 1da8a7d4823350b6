package config

import (
	"os"
	"strconv"
	"time"

	"bunkhouse/internal/database"
	"bunkhouse/internal/external"
	"bunkhouse/internal/messaging"
)

// Config holds the application configuration
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	AdminToken string

	// Checkout sessions are releasable after this TTL; the reaper enforces it.
	CheckoutTTL    time.Duration
	ReaperInterval time.Duration

	// TTL stamped on availability responses and used for the Valkey cache.
	AvailabilityCacheTTL time.Duration

	Database      database.Config
	NATS          messaging.Config
	Payment       external.PaymentConfig
	Elasticsearch ElasticsearchConfig
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		CheckoutTTL:    time.Duration(getEnvInt("CHECKOUT_TTL_MIN", 30)) * time.Minute,
		ReaperInterval: time.Duration(getEnvInt("REAPER_INTERVAL_SEC", 30)) * time.Second,

		AvailabilityCacheTTL: time.Duration(getEnvInt("AVAILABILITY_CACHE_TTL_SEC", 60)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "bunkhouse"),
			Password:           getEnv("DB_PASSWORD", "bunkhouse123"),
			DBName:             getEnv("DB_NAME", "bunkhouse"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "bunkhouse"),
			ClientID:  getEnv("NATS_CLIENT_ID", "bunkhouse-api"),
		},

		Payment: external.PaymentConfig{
			BaseURL:       getEnv("PAYMENT_PROVIDER_URL", "https://api.payments.example.com"),
			SecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Timeout:       time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 15)) * time.Second,
		},

		Elasticsearch: LoadElasticsearchConfig(),
	}
}

// getEnv returns the environment variable value or the default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer environment variable value or the default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
