// Package config loads the queryplan YAML configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coregx/queryplan/internal/protocol"
)

// Config represents a queryplan.yaml file.
type Config struct {
	// Resources is the template directory. Empty means the embedded templates.
	Resources string `yaml:"resources,omitempty"`
	// Output is the directory rendered documents are written to.
	// Empty means documents are returned inline.
	Output string `yaml:"output,omitempty"`

	Log      Log      `yaml:"log"`
	Database Database `yaml:"database"`

	// Color is the default background as "r,g,b".
	Color string `yaml:"color,omitempty"`
	// Redact lists column names whose arguments are masked in logs.
	Redact []string `yaml:"redact,omitempty"`
}

// Log configures the CLI logger.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Database configures the connection a command is run against.
type Database struct {
	Driver   string `yaml:"driver,omitempty"`
	DSN      string `yaml:"dsn,omitempty"`
	Provider string `yaml:"provider,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: Log{Level: "warn", Format: "console"},
	}
}

// Load reads path over the defaults. DSN values are expanded with os.ExpandEnv.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Database.DSN = os.ExpandEnv(cfg.Database.DSN)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format %q: want console or json", c.Log.Format)
	}
	if c.Color != "" {
		if _, err := ParseColor(c.Color); err != nil {
			return err
		}
	}
	return nil
}

// ProviderID returns the configured provider, falling back to the driver name.
func (d Database) ProviderID() string {
	if d.Provider != "" {
		return d.Provider
	}
	return d.Driver
}

// ParseColor parses "r,g,b" with each channel in 0..255.
func ParseColor(s string) (protocol.Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return protocol.Color{}, fmt.Errorf("invalid color %q: want r,g,b", s)
	}

	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return protocol.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		rgb[i] = uint8(v)
	}
	return protocol.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}
