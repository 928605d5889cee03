package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port             int
	DatabaseURL      string
	RedisAddr        string
	KafkaBrokers     string
	KafkaTopic       string
	NotificationsURL string
	LokiURL          string
	HoldTTL          time.Duration
	SweepInterval    time.Duration
}

func Load() Config {
	return Config{
		Port:             getEnvInt("PORT", 3133),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:       getEnv("KAFKA_LOW_STOCK_TOPIC", "inventory.low-stock"),
		NotificationsURL: getEnv("NOTIFICATIONS_URL", ""),
		LokiURL:          getEnv("LOKI_URL", ""),
		HoldTTL:          time.Duration(getEnvInt("HOLD_TTL_SECONDS", 900)) * time.Second,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
