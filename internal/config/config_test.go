package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("OAUTH_PROVIDER", "")
	t.Setenv("REMINDER_INTERVAL_SECONDS", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "todo_calendar.db", cfg.DatabaseURL)
	assert.Equal(t, "google", cfg.OAuth.Provider)
	assert.Equal(t, time.Minute, cfg.ReminderInterval)
	assert.Nil(t, cfg.CORSOrigins)
	assert.NotNil(t, cfg.Location)
}

func TestLoadRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestLoadCustomProviderNeedsEndpoints(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("OAUTH_PROVIDER", "custom")
	t.Setenv("OAUTH_AUTH_URL", "https://id.example.com/authorize")
	t.Setenv("OAUTH_TOKEN_URL", "")
	t.Setenv("OAUTH_USERINFO_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "OAUTH_TOKEN_URL")
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("OAUTH_PROVIDER", "")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("REMINDER_INTERVAL_SECONDS", "30")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.ReminderInterval)
	assert.Equal(t, "UTC", cfg.Location.String())
}
