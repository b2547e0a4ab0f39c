package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("WS_SEND_BUFFER", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 8, cfg.WS.SendBuffer)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 60*time.Second, cfg.WS.PongWait)
	assert.Equal(t, int64(5*1024*1024), cfg.Storage.MaxImageBytes)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: from-file\ndatabase:\n  driver: memory\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("AUTH_JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cfg := Config{
		Auth:     AuthConfig{JWTSecret: "s"},
		Database: DatabaseConfig{Driver: "mongo"},
		Storage:  StorageConfig{Driver: "local"},
		WS:       WSConfig{SendBuffer: 1},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "memory"
	cfg.Events.Driver = "nats"
	assert.Error(t, cfg.Validate())

	cfg.Events.Driver = "kafka"
	assert.NoError(t, cfg.Validate())
}
