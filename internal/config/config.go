package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "demandline.yml"

// Config models demandline.yml.
type Config struct {
	Users    []UserEntry `yaml:"users" json:"users"`
	Leader   string      `yaml:"leader" json:"leader"`
	Timezone string      `yaml:"timezone" json:"timezone"`
	Store    struct {
		Driver string `yaml:"driver" json:"driver"`
	} `yaml:"store" json:"store"`
	Server struct {
		Addr               string `yaml:"addr" json:"addr"`
		BasePath           string `yaml:"base_path" json:"base_path"`
		JWTSecret          string `yaml:"jwt_secret" json:"-"`
		SessionIdleTimeout string `yaml:"session_idle_timeout" json:"session_idle_timeout"`
	} `yaml:"server" json:"server"`
	Log struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"log" json:"log"`
}

type UserEntry struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Users) == 0 {
		return fmt.Errorf("config.users is required")
	}
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("config.users[%d].id is required", i)
		}
		if strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("user %s has empty name", u.ID)
		}
		if seen[u.ID] {
			return fmt.Errorf("user %s listed twice", u.ID)
		}
		seen[u.ID] = true
	}
	if c.Leader == "" {
		return fmt.Errorf("config.leader is required")
	}
	if !seen[c.Leader] {
		return fmt.Errorf("config.leader %s is not a listed user", c.Leader)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config.timezone: %w", err)
	}
	switch c.Store.Driver {
	case "", DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("config.store.driver must be %s or %s", DriverMemory, DriverSQLite)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.format must be json or console")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q not supported", c.Log.Level)
	}
	if _, err := c.IdleTimeout(); err != nil {
		return fmt.Errorf("config.server.session_idle_timeout: %w", err)
	}
	return nil
}

// Location returns the zone used to take the date portion of timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IdleTimeout returns how long an untouched session survives; zero disables reaping.
func (c *Config) IdleTimeout() (time.Duration, error) {
	if c.Server.SessionIdleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.SessionIdleTimeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	cfg.applyDefaults()
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/v0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

const defaultTemplate = `users:
  - id: "1"
    name: "Líder João"
  - id: "2"
    name: "Colaborador Maria"
  - id: "3"
    name: "Colaborador Pedro"
  - id: "4"
    name: "Colaborador Ana"
  - id: "5"
    name: "Colaborador Carlos"

leader: "1"

timezone: Local

store:
  driver: memory

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  session_idle_timeout: 2h

log:
  level: info
  format: console
`
