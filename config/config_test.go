package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "  secret ")
	t.Setenv("STORAGE_PUBLIC_BASE_URL", "http://cdn.example.com/images/")

	cfg := LoadConfig()

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "http://cdn.example.com/images", cfg.Storage.PublicBaseURL)
	assert.Equal(t, StorageBackendMinio, cfg.Storage.Backend)
	assert.Equal(t, MQBackendNone, cfg.MQ.Backend)
	assert.Equal(t, ImageReleaseInline, cfg.ImageReleaseMode)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("IMAGE_RELEASE_MODE", "queue")
	t.Setenv("RABBITMQ_PREFETCH_COUNT", "3")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
	assert.Equal(t, 3, cfg.MQ.RabbitMQ.PrefetchCount)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{
		JWTSecret:        "secret",
		ImageReleaseMode: ImageReleaseInline,
		Storage:          StorageConfig{Backend: StorageBackendGCS},
		MQ:               MQConfig{Backend: MQBackendNone},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "bad storage", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: "storage backend"},
		{name: "bad mq", mutate: func(c *Config) { c.MQ.Backend = "kafka" }, wantErr: "mq backend"},
		{name: "queue without mq", mutate: func(c *Config) { c.ImageReleaseMode = ImageReleaseQueue }, wantErr: "requires MQ_BACKEND"},
		{name: "bad release mode", mutate: func(c *Config) { c.ImageReleaseMode = "later" }, wantErr: "image release mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
