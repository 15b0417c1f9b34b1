package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	DeadLetterDBPath string
	ProfilesPath     string
	IngestURL        string

	// Retry/backoff surface. Threaded into the orchestrator constructor,
	// never read from ambient state by the core logic itself.
	MaxRetries           int
	BaseDelayMs          int
	BackoffMultiplier    float64
	DelayCapMs           int
	RetryableStatusCodes []int

	// Inventory resolver surface.
	FastMode       bool
	MaxTotalTimeMs int

	// Batch coordinator surface.
	JobDelayMs      int
	MaxSessions     int
	PageCacheTTLSec int

	TaskMaxRetries int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvIntList(key string, def []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return def
		}
		out = append(out, i)
	}
	return out
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8082"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),

		DeadLetterDBPath: getenv("DEAD_LETTER_DB", "./data/deadletters.db"),
		ProfilesPath:     os.Getenv("SITE_PROFILES"),
		IngestURL:        os.Getenv("INGEST_URL"),

		MaxRetries:           getenvInt("MAX_RETRIES", 3),
		BaseDelayMs:          getenvInt("BASE_DELAY_MS", 1000),
		BackoffMultiplier:    getenvFloat("BACKOFF_MULTIPLIER", 2.0),
		DelayCapMs:           getenvInt("DELAY_CAP_MS", 10000),
		RetryableStatusCodes: getenvIntList("RETRYABLE_STATUS_CODES", []int{429, 500, 502, 503, 504}),

		FastMode:       getenvBool("FAST_MODE", false),
		MaxTotalTimeMs: getenvInt("MAX_TOTAL_TIME_MS", 15000),

		JobDelayMs:      getenvInt("JOB_DELAY_MS", 2000),
		MaxSessions:     getenvInt("MAX_SESSIONS", 2),
		PageCacheTTLSec: getenvInt("PAGE_CACHE_TTL_SEC", 300),

		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}
