package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8800", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:8801", cfg.AdminAddr)
	assert.Equal(t, 4096, cfg.MaxFrameSize)
	assert.Equal(t, 5*time.Second, cfg.SpawnInterval)
	assert.Equal(t, "memory", cfg.StoreDriver)
	require.NoError(t, cfg.Validate())
}

func TestLoadServerFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DUNGEON_LISTEN_ADDR", "0.0.0.0:9900")
	t.Setenv("DUNGEON_SPAWN_INTERVAL", "250ms")
	t.Setenv("DUNGEON_MAX_PLAYERS", "5")
	t.Setenv("DUNGEON_STORE", "file")
	t.Setenv("DUNGEON_STORE_DIR", "/tmp/chars")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9900", cfg.ListenAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.SpawnInterval)
	assert.Equal(t, 5, cfg.MaxPlayers)
	require.NoError(t, cfg.Validate())
}

func TestLoadServerRejectsBadNumbers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DUNGEON_MAX_FRAME", "lots")

	_, err := LoadServer()
	assert.ErrorContains(t, err, "DUNGEON_MAX_FRAME")
}

func TestValidateServer(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadServer()
	require.NoError(t, err)

	cfg.StoreDriver = "postgres"
	assert.Error(t, cfg.Validate(), "postgres requires a database url")

	cfg.DatabaseURL = "postgres://localhost/dungeon"
	assert.NoError(t, cfg.Validate())

	cfg.WriteTimeout = 0
	assert.Error(t, cfg.Validate(), "write timeout must be positive")
	cfg.WriteTimeout = time.Second

	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}

func TestLoadClient(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DUNGEON_PLAYER_NAME", "Hero")
	t.Setenv("DUNGEON_SYNC_INTERVAL", "1s")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "Hero", cfg.PlayerName)
	assert.Equal(t, time.Second, cfg.SyncInterval)
	assert.Equal(t, "127.0.0.1:8800", cfg.ServerAddr)
	require.NoError(t, cfg.Validate())

	cfg.SyncInterval = 0
	assert.Error(t, cfg.Validate())

	cfg.SyncInterval = time.Second
	cfg.WriteTimeout = 0
	assert.Error(t, cfg.Validate())
}
