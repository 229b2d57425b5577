package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppName names the service, its Postgres schema and metric namespace.
const AppName = "billsplit"

type Config struct {
	Port            string
	Store           string // memory, sqlite, postgres, redis
	MqMode          string // go_chan, rabbitmq, gcp_pub_sub
	OrdersURL       string // order history endpoint, "{table}" is replaced by the table id
	PollInterval    time.Duration
	PersistDebounce time.Duration
	CacheTTL        time.Duration
	SQLitePath      string
	RedisAddr       string
}

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPersistDebounce = 100 * time.Millisecond
	DefaultCacheTTL        = 5 * time.Second
	DefaultOrdersURL       = "http://localhost:8000/api/v1/pedidos/historial/{table}"
)

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env", "error", err)
	}
	return Config{
		Port:            GetEnv("PORT", "8080"),
		Store:           GetEnv("STORE", "memory"),
		MqMode:          GetEnv("MQ", "go_chan"),
		OrdersURL:       GetEnv("ORDERS_URL", DefaultOrdersURL),
		PollInterval:    GetDuration("POLL_INTERVAL", DefaultPollInterval),
		PersistDebounce: GetDuration("PERSIST_DEBOUNCE", DefaultPersistDebounce),
		CacheTTL:        GetDuration("CACHE_TTL", DefaultCacheTTL),
		SQLitePath:      GetEnv("SQLITE_PATH", "data/billsplit.db"),
		RedisAddr:       GetEnv("REDIS_ADDR", "localhost:6379"),
	}
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetDuration accepts Go durations ("250ms") or plain seconds ("10").
func GetDuration(key string, fallback time.Duration) time.Duration {
	value := GetEnv(key, "")
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration, using default", "key", key, "value", value, "default", fallback)
	return fallback
}
