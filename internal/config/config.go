package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Registry backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

var validate = validator.New()

type AppConfig struct {
	TelegramToken string `validate:"required"`

	WeatherAPIURL          string `validate:"required,url"`
	WeatherLang            string `validate:"required"`
	WeatherToken           string `validate:"required"`
	WeatherTranslationsCfg string `validate:"required"`

	RegistryBackend string `validate:"oneof=postgres sqlite memory"`

	PostgresHost     string `validate:"required_if=RegistryBackend postgres"`
	PostgresPort     int    `validate:"min=1,max=65535"`
	PostgresDB       string `validate:"required_if=RegistryBackend postgres"`
	PostgresUser     string `validate:"required_if=RegistryBackend postgres"`
	PostgresPassword string `validate:"required_if=RegistryBackend postgres"`

	SQLitePath string `validate:"required_if=RegistryBackend sqlite"`

	// ReconnectInterval controls how often a disconnected registry retries.
	ReconnectInterval time.Duration `validate:"gt=0"`

	// HTTPTimeout bounds one request to the weather provider.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// ActionTimeout bounds the handling of one chat update.
	ActionTimeout time.Duration `validate:"gt=0"`
	PollTimeout   time.Duration `validate:"gt=0"`

	OperatorContact string

	// Ops API forecast cache.
	CacheMaxEntries int
	CacheMaxAge     time.Duration

	Port     string
	LogLevel slog.Level
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.WeatherAPIURL = os.Getenv("WEATHER_API_URL")
	cfg.WeatherLang = os.Getenv("WEATHER_LANG")
	cfg.WeatherToken = os.Getenv("WEATHER_TOKEN")
	cfg.WeatherTranslationsCfg = os.Getenv("WEATHER_TRANSLATIONS_CONFIG")

	cfg.RegistryBackend = strings.ToLower(getenvDefault("REGISTRY_BACKEND", BackendPostgres))
	cfg.PostgresHost = os.Getenv("POSTGRES_HOST")
	cfg.PostgresDB = os.Getenv("POSTGRES_DB")
	cfg.PostgresUser = os.Getenv("POSTGRES_USER")
	cfg.PostgresPassword = os.Getenv("POSTGRES_PASSWORD")
	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	cfg.OperatorContact = os.Getenv("OPERATOR_CONTACT")
	cfg.Port = getenvDefault("HTTP_PORT", "8080")

	var err error
	if cfg.PostgresPort, err = getenvInt("POSTGRES_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = getenvInt("FORECAST_CACHE_MAX_ENTRIES", 1000); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"REGISTRY_RECONNECT_INTERVAL", "3s", &cfg.ReconnectInterval},
		{"WEATHER_HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"BOT_ACTION_TIMEOUT", "15s", &cfg.ActionTimeout},
		{"BOT_POLL_TIMEOUT", "10s", &cfg.PollTimeout},
		{"FORECAST_CACHE_MAX_AGE", "10m", &cfg.CacheMaxAge},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// PostgresDSN returns the connection URL for the postgres backend.
func (c *AppConfig) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   net.JoinHostPort(c.PostgresHost, strconv.Itoa(c.PostgresPort)),
		Path:   "/" + c.PostgresDB,
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
