package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	ServiceOpen  string
	ServiceClose string
	CeilingTwo   int
	CeilingFour  int
	CeilingEight int
	CeilingTen   int

	RedisAddr    string
	MenuCacheTTL time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int

	NotifyInterval     time.Duration
	NotifyBatchSize    int
	NotifyProvider     string
	NotifyWebhookURL   string
	NotifyWebhookToken string

	CORSOrigins []string

	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		ServiceOpen:  readString("SERVICE_OPEN", "10:00"),
		ServiceClose: readString("SERVICE_CLOSE", "22:00"),
		CeilingTwo:   readInt("CEILING_TABLE_2", 7),
		CeilingFour:  readInt("CEILING_TABLE_4", 10),
		CeilingEight: readInt("CEILING_TABLE_8", 2),
		CeilingTen:   readInt("CEILING_TABLE_10", 1),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		MenuCacheTTL: readDurationSeconds("MENU_CACHE_TTL_SECONDS", 60),

		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),

		NotifyInterval:     readDurationSeconds("NOTIFY_SCAN_INTERVAL_SECONDS", 10),
		NotifyBatchSize:    readInt("NOTIFY_BATCH_SIZE", 50),
		NotifyProvider:     os.Getenv("NOTIFY_PROVIDER"),
		NotifyWebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyWebhookToken: os.Getenv("NOTIFY_WEBHOOK_TOKEN"),

		CORSOrigins: readList("CORS_ORIGINS", []string{"*"}),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
	}
}

func readString(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func readList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
