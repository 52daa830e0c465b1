package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"starfall-arena/game"
)

// Config is the root of the server's YAML configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Game    GameConfig    `yaml:"game"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	ClientDir string `yaml:"client_dir"`
	// PublicURL is the base encoded into spectator QR codes. Empty means the
	// request's own scheme and host.
	PublicURL string `yaml:"public_url"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type GameConfig struct {
	Width              float64 `yaml:"width"`
	Height             float64 `yaml:"height"`
	Seed               int64   `yaml:"seed"`
	TickRate           int     `yaml:"tick_rate"`
	BroadcastRate      int     `yaml:"broadcast_rate"`
	MaxSessions        int     `yaml:"max_sessions"`
	IdleTimeoutSeconds int     `yaml:"idle_timeout_seconds"`
}

// IdleTimeout returns how long a session may go without traffic
func (g GameConfig) IdleTimeout() time.Duration {
	return time.Duration(g.IdleTimeoutSeconds) * time.Second
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080", ClientDir: "client"},
		Storage: StorageConfig{Path: "starfall.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Game: GameConfig{
			Width:              game.DefaultWidth,
			Height:             game.DefaultHeight,
			TickRate:           60,
			BroadcastRate:      30,
			MaxSessions:        100,
			IdleTimeoutSeconds: 600,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path falls
// back to STARFALL_CONFIG; if that is unset too the defaults are used.
// Environment overrides are applied last.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("STARFALL_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = stringFromEnv("STARFALL_ADDR", c.Server.Addr)
	c.Storage.Path = stringFromEnv("STARFALL_DB", c.Storage.Path)
	c.Auth.JWTSecret = stringFromEnv("STARFALL_JWT_SECRET", c.Auth.JWTSecret)
	c.Log.Level = stringFromEnv("STARFALL_LOG_LEVEL", c.Log.Level)
	c.Game.Seed = int64FromEnv("STARFALL_SEED", c.Game.Seed)
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if c.Game.Width <= 0 || c.Game.Height <= 0 {
		return fmt.Errorf("game arena must be positive, got %vx%v", c.Game.Width, c.Game.Height)
	}
	if c.Game.TickRate <= 0 {
		return fmt.Errorf("game.tick_rate must be positive, got %d", c.Game.TickRate)
	}
	if c.Game.BroadcastRate <= 0 || c.Game.BroadcastRate > c.Game.TickRate {
		return fmt.Errorf("game.broadcast_rate must be in 1..%d, got %d", c.Game.TickRate, c.Game.BroadcastRate)
	}
	if c.Game.MaxSessions <= 0 {
		return fmt.Errorf("game.max_sessions must be positive, got %d", c.Game.MaxSessions)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// stringFromEnv returns the env value when set, otherwise fallback
func stringFromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func int64FromEnv(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
