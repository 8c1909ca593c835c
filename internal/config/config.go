package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the server.
type Config struct {
	Environment string
	HTTPAddr    string
	DatabaseURL string

	// OwnerOpenID is granted the admin role the first time it signs in.
	OwnerOpenID   string
	SessionSecret string

	OAuth OAuthConfig

	RedisURL         string
	TelegramToken    string
	ReminderInterval time.Duration
	DigestTime       string
	Location         *time.Location
	CORSOrigins      []string

	LogLevel string
	LogFile  string
}

// OAuthConfig describes the identity provider used for sign-in.
type OAuthConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:   env("ENVIRONMENT"),
		HTTPAddr:      env("HTTP_ADDR"),
		DatabaseURL:   env("DATABASE_URL"),
		OwnerOpenID:   env("OWNER_OPEN_ID"),
		SessionSecret: env("SESSION_SECRET"),
		OAuth: OAuthConfig{
			Provider:     strings.ToLower(env("OAUTH_PROVIDER")),
			ClientID:     env("OAUTH_CLIENT_ID"),
			ClientSecret: env("OAUTH_CLIENT_SECRET"),
			RedirectURL:  env("OAUTH_REDIRECT_URL"),
			AuthURL:      env("OAUTH_AUTH_URL"),
			TokenURL:     env("OAUTH_TOKEN_URL"),
			UserInfoURL:  env("OAUTH_USERINFO_URL"),
		},
		RedisURL:         env("REDIS_URL"),
		TelegramToken:    env("TELEGRAM_TOKEN"),
		ReminderInterval: parseSeconds(env("REMINDER_INTERVAL_SECONDS")),
		DigestTime:       env("DIGEST_TIME"),
		CORSOrigins:      splitList(env("CORS_ORIGINS")),
		LogLevel:         env("LOG_LEVEL"),
		LogFile:          env("LOG_FILE"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "todo_calendar.db"
	}
	if cfg.ReminderInterval == 0 {
		cfg.ReminderInterval = time.Minute
	}
	if cfg.OAuth.Provider == "" {
		cfg.OAuth.Provider = "google"
	}

	loc := time.Local
	if name := env("APP_TIMEZONE"); name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			return cfg, fmt.Errorf("APP_TIMEZONE: %w", err)
		}
		loc = l
	}
	cfg.Location = loc

	if cfg.SessionSecret == "" {
		return cfg, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.OAuth.Provider != "google" && (cfg.OAuth.AuthURL == "" || cfg.OAuth.TokenURL == "" || cfg.OAuth.UserInfoURL == "") {
		return cfg, fmt.Errorf("OAUTH_AUTH_URL, OAUTH_TOKEN_URL and OAUTH_USERINFO_URL are required for provider %q", cfg.OAuth.Provider)
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseSeconds(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
