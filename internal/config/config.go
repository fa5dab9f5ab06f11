// Package config loads runtime settings from flags, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// Bot delivery modes.
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// Config holds all configuration for the application.
type Config struct {
	// Telegram
	BotToken      string `conf:"env:BOT_TOKEN,noprint"`
	BotMode       string `conf:"default:webhook,enum:webhook|polling,env:BOT_MODE"`
	WebhookSecret string `conf:"env:WEBHOOK_SECRET,noprint"`
	BaseWebURL    string `conf:"env:BASE_WEB_URL"`

	// Comma separated Telegram user ids.
	AdminIDs string `conf:"env:ADMIN_IDS"`

	// Storage
	DatabaseURL string `conf:"default:popis.sqlite3,env:DATABASE_URL,noprint"`
	RedisURL    string `conf:"env:REDIS_URL,noprint"`
	ExportDir   string `conf:"env:EXPORT_DIR"`

	// HTTP
	Addr               string `conf:"default::10000,env:ADDR"`
	StaticDir          string `conf:"env:STATIC_DIR"`
	CORSAllowedOrigins string `conf:"default:*,env:CORS_ALLOWED_ORIGINS"`
	RequireWebAppToken bool   `conf:"default:false,env:REQUIRE_WEBAPP_TOKEN"`

	Timezone string `conf:"default:UTC,env:TIMEZONE"`

	// Logging
	LogLevel  string `conf:"default:info,enum:debug|info|warn|error,env:LOG_LEVEL"`
	LogFormat string `conf:"default:text,enum:text|json,env:LOG_FORMAT"`
	LogFile   string `conf:"env:LOG_FILE"`
}

// Load reads configuration from flags and environment variables with sensible
// defaults. A .env file in the working directory is loaded first if present.
// The returned help string is non-empty when --help or --version was requested.
func Load() (*Config, string, error) {
	var cfg Config
	_ = godotenv.Load()

	help, err := conf.Parse("", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return nil, help, nil
		}
		return nil, "", fmt.Errorf("parsing config: %w", err)
	}

	// Hosting platforms hand out the listen port as PORT.
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}

	return &cfg, "", nil
}

// Admins parses ADMIN_IDS.
func (c *Config) Admins() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(c.AdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.BotToken == "" {
		errs = append(errs, "BOT_TOKEN is required")
	}

	if c.BaseWebURL == "" {
		errs = append(errs, "BASE_WEB_URL is required")
	} else if u, err := url.Parse(c.BaseWebURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("BASE_WEB_URL %q must be an absolute URL", c.BaseWebURL))
	} else if c.BotMode == ModeWebhook && u.Scheme != "https" {
		errs = append(errs, "BASE_WEB_URL must use https in webhook mode")
	}

	if _, err := c.Admins(); err != nil {
		errs = append(errs, "ADMIN_IDS: "+err.Error())
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, "TIMEZONE: "+err.Error())
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
}

// WebhookURL is where Telegram delivers updates in webhook mode.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.BaseWebURL, "/") + "/webhook"
}
