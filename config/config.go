package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the dashboard API.
type Config struct {
	Port    string
	GinMode string
	LogMode string

	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseUsername string
	ClickHousePassword string
	DatabasePrefix     string
	DatabaseSuffix     string
	DialTimeout        time.Duration

	TenantDirectoryDSN string

	RequestTimeout time.Duration
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	HealthTenant   string

	FrontendOrigin           string
	BookingConversionDomains []string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads configuration with defaults.
func FromEnv() Config {
	return Config{
		Port:    getenv("PORT", "8080"),
		GinMode: getenv("GIN_MODE", ""),
		LogMode: getenv("LOG_MODE", "development"),

		ClickHouseHost:     getenv("CLICKHOUSE_HOST", ""),
		ClickHousePort:     getint("CLICKHOUSE_NATIVE_PORT", 0),
		ClickHouseUsername: getenv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getenv("CLICKHOUSE_PASSWORD", ""),
		DatabasePrefix:     getenv("CLICKHOUSE_DB_PREFIX", "carat_161108_"),
		DatabaseSuffix:     getenv("CLICKHOUSE_DB_SUFFIX", ""),
		DialTimeout:        getduration("CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),

		TenantDirectoryDSN: getenv("TENANT_DIRECTORY_DSN", ""),

		RequestTimeout: getduration("REQUEST_TIMEOUT", 10*time.Second),
		ReconnectDelay: getduration("RECONNECT_DELAY", 2*time.Second),
		PingInterval:   getduration("HEALTH_PING_INTERVAL", 30*time.Second),
		HealthTenant:   getenv("HEALTH_TENANT", ""),

		FrontendOrigin:           getenv("FE_ORIGIN", "http://localhost:3000"),
		BookingConversionDomains: getlist("BOOKING_CONVERSION_DOMAINS", "nissan"),
	}
}

func (c Config) Validate() error {
	if c.ClickHouseHost == "" || c.ClickHousePort == 0 {
		return fmt.Errorf("CLICKHOUSE_HOST or CLICKHOUSE_NATIVE_PORT environment variables are not set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getduration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getlist(key, def string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key, def), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
