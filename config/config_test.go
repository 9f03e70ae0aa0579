package config

import (
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.False(t, cfg.IsDev)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "jobkeeper", cfg.Postgres.Name)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, "localhost:6379", cfg.Redis.URI)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.HTTP.BaseURL)
	assert.Equal(t, 100, cfg.HTTP.DefaultPageLimit)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "jobkeeper:events", cfg.Events.Channel)
}

func TestAppConfig_FromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_RUN_MIGRATIONS_ON_START", "false")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("APP_BASE_URL", "https://jobs.example.org")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("EVENTS_CHANNEL", "jobs.lifecycle")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.False(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "https://jobs.example.org", cfg.HTTP.BaseURL)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "jobs.lifecycle", cfg.Events.Channel)
}

func TestAppConfig_Sanitize(t *testing.T) {
	t.Run("clamps bad HTTP values", func(t *testing.T) {
		cfg := AppConfig{}
		cfg.HTTP.Addr = ""
		cfg.HTTP.DefaultPageLimit = -1
		cfg.Sanitize()

		assert.Equal(t, ":8080", cfg.HTTP.Addr)
		assert.Equal(t, 100, cfg.HTTP.DefaultPageLimit)
	})

	t.Run("APP_ENV development enables dev mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")

		cfg := AppConfig{}
		cfg.Sanitize()
		assert.True(t, cfg.IsDev)
	})

	t.Run("DEV flag wins regardless of APP_ENV", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")

		cfg := AppConfig{IsDev: true}
		cfg.Sanitize()
		assert.True(t, cfg.IsDev)
	})
}
