package config

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, cfg.StoreBackend, "postgres")
	assert.Equal(t, cfg.MessageTTL, time.Hour)
	assert.Equal(t, cfg.CORSOrigins, []string{"*"})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MESSAGE_TTL", "15m")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()
	assert.Equal(t, cfg.StoreBackend, "memory")
	assert.Equal(t, cfg.MessageTTL, 15*time.Minute)
	assert.Equal(t, len(cfg.CORSOrigins), 2)

	t.Setenv("MESSAGE_TTL", "soon")
	assert.Equal(t, Load().MessageTTL, time.Hour)
}
