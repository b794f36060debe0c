// Package config loads service configuration from a YAML file with
// environment-variable expansion. Missing file falls back to defaults so the
// service can run from env vars alone.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	NATS          NATSConfig          `yaml:"nats"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
	LogLevel      string              `yaml:"log_level"`
}

// ServiceConfig identifies the service in logs and events.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the Postgres pool settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// NATSConfig holds notification publishing settings. Disabled by default.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// CollaboratorsConfig holds the external decision-authority endpoints.
type CollaboratorsConfig struct {
	ProcessLegalityURL string `yaml:"process_legality_url"`
}

// Load reads the config file at path (env: CONFIG_PATH, default config.yaml),
// expands ${VAR} references, applies defaults and validates.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	cfg := defaults()

	raw, err := os.ReadFile(path)
	if err == nil {
		expanded := strings.ReplaceAll(os.ExpandEnv(string(raw)), "\r\n", "\n")
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "be-hr-governance",
			Version:     "0.1.0",
			Environment: "development",
		},
		Server: ServerConfig{
			Port:            8086,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Collaborators: CollaboratorsConfig{
			ProcessLegalityURL: "http://localhost:8090",
		},
		LogLevel: "info",
	}
}

// applyEnvOverrides lets the most common deployment knobs be set without a
// config file at all.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("PROCESS_LEGALITY_URL"); v != "" {
		c.Collaborators.ProcessLegalityURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Collaborators.ProcessLegalityURL == "" {
		return fmt.Errorf("collaborators.process_legality_url is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled=true")
	}
	return nil
}
