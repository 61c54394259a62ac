package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "peerlink", cfg.DBName)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "http://localhost:3000", cfg.AppBaseURL)
	assert.Empty(t, cfg.ConferencingURL)
	assert.Empty(t, cfg.TelephonyURL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TELEPHONY_URL", "https://calls.example.com")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://calls.example.com", cfg.TelephonyURL)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 587, cfg.SMTPPort)
}
