package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML strings like "10s" or "1m30s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the full server configuration, loaded from a YAML file with
// ${ENV_VAR} placeholders substituted from the environment.
type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		CookieSecure bool   `yaml:"cookie_secure"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		AdminSecret string `yaml:"admin_secret"`
		BcryptCost  int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	Tracking struct {
		Timezone           string   `yaml:"timezone"`
		SplitCheckInterval Duration `yaml:"split_check_interval"`
	} `yaml:"tracking"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Replace ${VAR} placeholders with environment values.
	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		placeholder := "${" + pair[0] + "}"
		content = strings.ReplaceAll(content, placeholder, pair[1])
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "aligner-tracker.db"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}
	if c.Tracking.Timezone == "" {
		c.Tracking.Timezone = "Local"
	}
	if c.Tracking.SplitCheckInterval == 0 {
		c.Tracking.SplitCheckInterval = Duration(10 * time.Second)
	}
}

func (c *Config) validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters for HMAC-SHA256 security")
	}
	if c.Auth.AdminSecret == "" {
		return fmt.Errorf("auth.admin_secret is required")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 14 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 14, got %d", c.Auth.BcryptCost)
	}
	return nil
}

// Location resolves the configured timezone for calendar-day arithmetic.
func (c *Config) Location() (*time.Location, error) {
	if c.Tracking.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Tracking.Timezone, err)
	}
	return loc, nil
}
