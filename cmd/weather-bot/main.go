package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-bot/internal/api/http"
	"github.com/i474232898/weather-bot/internal/bot"
	"github.com/i474232898/weather-bot/internal/config"
	"github.com/i474232898/weather-bot/internal/conversation"
	"github.com/i474232898/weather-bot/internal/registry"
	"github.com/i474232898/weather-bot/internal/store"
	"github.com/i474232898/weather-bot/internal/weather"
	"github.com/i474232898/weather-bot/internal/weather/providers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("weather bot stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	translator, err := weather.NewTranslatorFromFile(cfg.WeatherTranslationsCfg)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewYandexProvider(httpClient, cfg.WeatherAPIURL, cfg.WeatherLang, cfg.WeatherToken)
	receiver := weather.NewReceiver(provider, translator)

	locations, probe, closeRegistry, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	machine := conversation.NewMachine(locations, receiver, cfg.OperatorContact)

	tgBot, err := bot.New(bot.Config{
		Token:         cfg.TelegramToken,
		PollTimeout:   cfg.PollTimeout,
		ActionTimeout: cfg.ActionTimeout,
	}, machine)
	if err != nil {
		return err
	}

	app := httpapi.NewApp(httpapi.Deps{
		Forecasts:      receiver,
		Storage:        probe,
		Cache:          store.NewMemoryStore(cfg.CacheMaxEntries, cfg.CacheMaxAge),
		RequestTimeout: cfg.ActionTimeout,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()
	go tgBot.Start()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	slog.Info("shutting down")

	tgBot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	return nil
}

// openRegistry builds the configured location registry. probe is nil for the
// in-memory backend.
func openRegistry(cfg *config.AppConfig) (registry.Registry, httpapi.StorageProbe, func(), error) {
	var sqlCfg registry.SQLConfig
	switch cfg.RegistryBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory location registry; locations are lost on restart")
		return registry.NewMemoryRegistry(), nil, func() {}, nil
	case config.BackendSQLite:
		sqlCfg = registry.SQLConfig{Dialect: registry.SQLite, DSN: cfg.SQLitePath}
	default:
		sqlCfg = registry.SQLConfig{Dialect: registry.Postgres, DSN: cfg.PostgresDSN()}
	}
	sqlCfg.ReconnectInterval = cfg.ReconnectInterval

	reg, err := registry.NewSQLRegistry(sqlCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open location registry: %w", err)
	}
	closeFn := func() {
		if err := reg.Close(); err != nil {
			slog.Error("error closing location registry", "error", err)
		}
	}
	return reg, reg, closeFn, nil
}
