package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	StaticDir string `hcl:"static_dir,optional"`
}

// GameSettings contains the table rules applied to every instance.
type GameSettings struct {
	Blinds            int `hcl:"blinds,optional"`
	StartChips        int `hcl:"start_chips,optional"`
	KickGraceSeconds  int `hcl:"kick_grace_seconds,optional"`
	WinnerDelaySecond int `hcl:"winner_delay_seconds,optional"`
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:   "localhost",
			Port:      3000,
			LogLevel:  "info",
			StaticDir: "public",
		},
		Game: GameSettings{
			Blinds:            1,
			StartChips:        100,
			KickGraceSeconds:  120,
			WinnerDelaySecond: 5,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.Blinds == 0 {
		config.Game.Blinds = defaults.Game.Blinds
	}
	if config.Game.StartChips == 0 {
		config.Game.StartChips = defaults.Game.StartChips
	}
	if config.Game.KickGraceSeconds == 0 {
		config.Game.KickGraceSeconds = defaults.Game.KickGraceSeconds
	}
	if config.Game.WinnerDelaySecond == 0 {
		config.Game.WinnerDelaySecond = defaults.Game.WinnerDelaySecond
	}

	return &config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.Blinds <= 0 {
		return fmt.Errorf("blinds must be positive")
	}
	if c.Game.StartChips <= c.Game.Blinds {
		return fmt.Errorf("start chips must exceed the blind")
	}
	if c.Game.KickGraceSeconds <= 0 {
		return fmt.Errorf("kick grace must be positive")
	}
	return nil
}

// ListenAddr returns the full listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// KickGrace returns the disconnect grace period as a duration.
func (c *Config) KickGrace() time.Duration {
	return time.Duration(c.Game.KickGraceSeconds) * time.Second
}

// WinnerDelay returns the winner re-broadcast delay as a duration.
func (c *Config) WinnerDelay() time.Duration {
	return time.Duration(c.Game.WinnerDelaySecond) * time.Second
}
