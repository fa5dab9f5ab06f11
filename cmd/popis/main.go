package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/erazemk/popis/internal/api"
	"github.com/erazemk/popis/internal/bot"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/dialog"
	"github.com/erazemk/popis/internal/inventory"
	"github.com/erazemk/popis/internal/store"
)

func main() {
	cfg, help, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if help != "" {
		fmt.Fprint(os.Stdout, help)
		os.Exit(0)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.LogFile, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adminIDs, err := cfg.Admins()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "dialect", database.Dialect)

	// Signs WebApp tokens; generated on first run.
	tokenSecret, err := store.GetTokenSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading token secret: %w", err)
	}

	opts := []inventory.Option{inventory.WithLocation(loc)}
	if cfg.ExportDir != "" {
		opts = append(opts, inventory.WithArchiveDir(cfg.ExportDir))
	}
	svc := inventory.NewService(database, inventory.NewAdmins(adminIDs...), opts...)
	if len(adminIDs) == 0 {
		slog.Warn("no admins configured, admin panel is unavailable")
	}

	var states dialog.Store = dialog.NewMemoryStore(dialog.DefaultTTL)
	var redisCheck api.HealthChecker
	if cfg.RedisURL != "" {
		rc, err := dialog.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		states = dialog.NewRedisStore(rc.Client(), dialog.DefaultTTL)
		redisCheck = rc
		slog.Info("dialog state stored in redis")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	slog.Info("telegram bot authorized", "username", botAPI.Self.UserName)

	b := bot.New(botAPI, svc, states, cfg.BaseWebURL, tokenSecret)

	deps := api.Deps{
		Inventory:          svc,
		TokenSecret:        tokenSecret,
		RequireWebAppToken: cfg.RequireWebAppToken,
		Database:           api.PingFunc(database.PingContext),
		Redis:              redisCheck,
		StaticDir:          cfg.StaticDir,
		ExportDir:          cfg.ExportDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	switch cfg.BotMode {
	case config.ModeWebhook:
		deps.Bot = b
		deps.WebhookSecret = cfg.WebhookSecret
		if err := setWebhook(botAPI, cfg.WebhookURL(), cfg.WebhookSecret); err != nil {
			return err
		}
		slog.Info("webhook registered", "url", cfg.WebhookURL())
		defer deleteWebhook(botAPI)

	case config.ModePolling:
		deleteWebhook(botAPI)
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := botAPI.GetUpdatesChan(u)
		go b.Run(ctx, updates)
		defer botAPI.StopReceivingUpdates()
		slog.Info("polling for updates")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Addr, "mode", cfg.BotMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// setWebhook registers url with Telegram. The secret is echoed back by
// Telegram in a header on every delivery.
func setWebhook(botAPI *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)

	resp, err := botAPI.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("setting webhook: %s", resp.Description)
	}
	return nil
}

func deleteWebhook(botAPI *tgbotapi.BotAPI) {
	if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Error("deleting webhook", "error", err)
	}
}
