// Package config loads the engine configuration from YAML with sane
// defaults, so a bare binary can start against the public game server with
// only player and claim ids filled in.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Player PlayerConfig `yaml:"player"`
	Data   DataConfig   `yaml:"data"`
	Engine EngineConfig `yaml:"engine"`
}

type ServerConfig struct {
	Host   string `yaml:"host"`
	Module string `yaml:"module"`
	// Token is the bearer authorization token. Prefer the
	// CRAFTWATCH_TOKEN environment variable over putting it in the file.
	Token string `yaml:"token,omitempty"`
}

type PlayerConfig struct {
	PlayerID   uint64 `yaml:"player_id"`
	PlayerName string `yaml:"player_name"`
	ClaimID    uint64 `yaml:"claim_id"`
}

type DataConfig struct {
	// ReferenceDB is the sqlite file holding the game's static definition
	// tables. Empty disables reference lookups; the engine then falls back
	// to numeric display names.
	ReferenceDB string `yaml:"reference_db"`
	// ActivityDir receives the compressed activity journal. Empty disables
	// journaling.
	ActivityDir string `yaml:"activity_dir"`
}

type EngineConfig struct {
	QueueSize int `yaml:"queue_size"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:   "bitcraft-early-access.spacetimedb.com",
			Module: "bitcraft",
		},
		Data: DataConfig{
			ActivityDir: "activity",
		},
		Engine: EngineConfig{
			QueueSize: 256,
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if token := os.Getenv("CRAFTWATCH_TOKEN"); token != "" {
		c.Server.Token = token
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 256
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if strings.TrimSpace(c.Server.Module) == "" {
		return fmt.Errorf("server.module must not be empty")
	}
	if c.Player.PlayerID == 0 {
		return fmt.Errorf("player.player_id must be set")
	}
	if c.Player.ClaimID == 0 {
		return fmt.Errorf("player.claim_id must be set")
	}
	return nil
}
