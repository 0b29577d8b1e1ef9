package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI string
	NATSUrl  string
	Port     string

	IngestQueueSize    int
	BroadcastQueueSize int

	StoreMaxRetries int
	StoreRetryDelay time.Duration

	SendTimeout    time.Duration
	IdleTimeout    time.Duration
	ReaperInterval time.Duration

	ScrapeInterval time.Duration
	FetchInterval  time.Duration
	RateLimit      time.Duration

	RetentionWindow time.Duration
	CleanupInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		NATSUrl:  getEnv("NATS_URL", ""),
		Port:     getEnv("PORT", "8080"),

		IngestQueueSize:    getIntEnv("INGEST_QUEUE_SIZE", 10000),
		BroadcastQueueSize: getIntEnv("BROADCAST_QUEUE_SIZE", 10000),

		StoreMaxRetries: getIntEnv("STORE_MAX_RETRIES", 3),
		StoreRetryDelay: getDurationEnv("STORE_RETRY_DELAY", "500ms"),

		SendTimeout:    getDurationEnv("SEND_TIMEOUT", "5s"),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", "5m"),
		ReaperInterval: getDurationEnv("REAPER_INTERVAL", "30s"),

		ScrapeInterval: getDurationEnv("SCRAPE_INTERVAL", "60s"),
		FetchInterval:  getDurationEnv("FETCH_INTERVAL", "2m"),
		RateLimit:      getDurationEnv("RATE_LIMIT", "1500ms"),

		RetentionWindow: getDurationEnv("RETENTION_WINDOW", "168h"),
		CleanupInterval: getDurationEnv("CLEANUP_INTERVAL", "24h"),
	}

	log.Printf("Config loaded - Port: %s, IngestQueue: %d, BroadcastQueue: %d, SendTimeout: %v, IdleTimeout: %v",
		cfg.Port, cfg.IngestQueueSize, cfg.BroadcastQueueSize, cfg.SendTimeout, cfg.IdleTimeout)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
