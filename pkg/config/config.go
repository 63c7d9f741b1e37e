package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config is the seed-bound configuration artifact written by the static
// randomizer. It is read once at startup. The core never rewrites it except
// through an explicit SetServerURL call after a faulted connection.
type Config struct {
	ServerURL string `json:"serverUrl" env:"EMBERLINK_SERVER_URL"`
	Slot      string `json:"slot" env:"EMBERLINK_SLOT"`
	Password  string `json:"password" env:"EMBERLINK_PASSWORD"`

	// Seed is the multiworld seed this configuration was generated for.
	Seed string `json:"seed"`

	// GeneratorVersion is the version of the static randomizer that wrote
	// this file. It must match the running client's version.
	GeneratorVersion string `json:"generatorVersion"`

	GameDataPath string `json:"gameDataPath" env:"EMBERLINK_GAME_DATA"`
	DatabasePath string `json:"databasePath" env:"EMBERLINK_DATABASE"`

	DeathLink DeathLinkConfig `json:"deathLink"`
	Goal      string          `json:"goal"`
}

// DeathLinkConfig holds the death link options chosen at generation time.
// They are read once at session start and are immutable for the session.
type DeathLinkConfig struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`
	Amnesty int    `json:"amnesty"`
}

// Death link qualifying modes.
const (
	DeathLinkModeAny         = "any"
	DeathLinkModeUnrecovered = "unrecovered"
)

// Load reads the config file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if cfg.GameDataPath == "" {
		cfg.GameDataPath = filepath.Join(dir, "apdata.json.zst")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dir, "emberlink.db")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Slot == "" {
		return fmt.Errorf("config is missing a slot name")
	}
	if c.Seed == "" {
		return fmt.Errorf("config is missing a seed")
	}
	switch c.DeathLink.Mode {
	case "", DeathLinkModeAny, DeathLinkModeUnrecovered:
	default:
		return fmt.Errorf("unknown death link mode: %s", c.DeathLink.Mode)
	}
	if c.DeathLink.Amnesty < 0 {
		return fmt.Errorf("death link amnesty must not be negative")
	}
	return nil
}

// SetServerURL updates the server URL and writes the config back to path.
// This is the only write the client ever performs on the config artifact,
// driven by an explicit user action after a faulted connection.
func (c *Config) SetServerURL(path, url string) error {
	c.ServerURL = url
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}
	return nil
}
