// Package config reads server and client settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultPort is the conventional game port.
const DefaultPort = 8800

// Server holds the settings of `dungeonsync serve`.
type Server struct {
	ListenAddr    string        `validate:"required,hostname_port"`
	AdminAddr     string        `validate:"omitempty,hostname_port"`
	MaxFrameSize  int           `validate:"gte=64,lte=1048576"`
	IdleTimeout   time.Duration `validate:"gte=0"`
	WriteTimeout  time.Duration `validate:"gt=0"`
	MaxPlayers    int           `validate:"gte=0"`
	SpawnInterval time.Duration `validate:"gte=0"`
	MaxFloorItems int           `validate:"gte=0"`
	StoreDriver   string        `validate:"oneof=memory file postgres"`
	StoreDir      string        `validate:"required_if=StoreDriver file"`
	DatabaseURL   string        `validate:"required_if=StoreDriver postgres"`
	CacheSize     int           `validate:"gte=0"`
	CacheTTL      time.Duration `validate:"gte=0"`
	LogFile       string
	LogLevel      string `validate:"oneof=debug info warn error"`
}

// Client holds the settings of `dungeonsync join`.
type Client struct {
	ServerAddr       string        `validate:"required"`
	PlayerName       string        `validate:"max=24"`
	MaxFrameSize     int           `validate:"gte=64,lte=1048576"`
	SyncInterval     time.Duration `validate:"gt=0"`
	HandshakeTimeout time.Duration `validate:"gt=0"`
	WriteTimeout     time.Duration `validate:"gt=0"`
	LogFile          string
	LogLevel         string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// LoadServer reads the server settings. A .env file is used when present.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	cfg := &Server{
		ListenAddr:  getEnv("DUNGEON_LISTEN_ADDR", fmt.Sprintf("127.0.0.1:%d", DefaultPort)),
		AdminAddr:   getEnv("DUNGEON_ADMIN_ADDR", fmt.Sprintf("127.0.0.1:%d", DefaultPort+1)),
		StoreDriver: getEnv("DUNGEON_STORE", "memory"),
		StoreDir:    getEnv("DUNGEON_STORE_DIR", "characters"),
		DatabaseURL: getEnv("DUNGEON_DATABASE_URL", ""),
		LogFile:     getEnv("DUNGEON_LOG_FILE", "dungeonsync.log"),
		LogLevel:    getEnv("DUNGEON_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MaxFrameSize, err = getInt("DUNGEON_MAX_FRAME", 4096); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = getDuration("DUNGEON_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("DUNGEON_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxPlayers, err = getInt("DUNGEON_MAX_PLAYERS", 0); err != nil {
		return nil, err
	}
	if cfg.SpawnInterval, err = getDuration("DUNGEON_SPAWN_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxFloorItems, err = getInt("DUNGEON_MAX_FLOOR_ITEMS", 20); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = getInt("DUNGEON_CACHE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("DUNGEON_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient reads the client settings. A .env file is used when present.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	cfg := &Client{
		ServerAddr: getEnv("DUNGEON_SERVER_ADDR", fmt.Sprintf("127.0.0.1:%d", DefaultPort)),
		PlayerName: getEnv("DUNGEON_PLAYER_NAME", ""),
		LogFile:    getEnv("DUNGEON_LOG_FILE", "dungeonsync-client.log"),
		LogLevel:   getEnv("DUNGEON_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MaxFrameSize, err = getInt("DUNGEON_MAX_FRAME", 4096); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getDuration("DUNGEON_SYNC_INTERVAL", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout, err = getDuration("DUNGEON_HANDSHAKE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("DUNGEON_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Call it after flags have been applied.
func (c *Server) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}

// Validate checks field constraints. Call it after flags have been applied.
func (c *Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}
