package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	PrimaryStore struct {
		Region                 string `yaml:"region"`
		Bucket                 string `yaml:"bucket"`
		AccessKey              string `yaml:"access_key"`
		SecretKey              string `yaml:"secret_key"`
		Endpoint               string `yaml:"endpoint"`
		SignedURLExpiryMinutes int    `yaml:"signed_url_expiry_minutes"`
	} `yaml:"primary_store"`

	Staging struct {
		Bucket          string `yaml:"bucket"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"staging"`

	Engine struct {
		Language            string `yaml:"language"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		PollTimeoutMinutes  int    `yaml:"poll_timeout_minutes"`
	} `yaml:"engine"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Retention struct {
		WindowDays         int `yaml:"window_days"`
		SweepIntervalHours int `yaml:"sweep_interval_hours"`
	} `yaml:"retention"`

	Storage struct {
		Database string `yaml:"database"`
	} `yaml:"storage"`
}

// Load reads the YAML configuration file and fills in defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 100
	}
	if c.PrimaryStore.SignedURLExpiryMinutes == 0 {
		c.PrimaryStore.SignedURLExpiryMinutes = 60
	}
	if c.Engine.Language == "" {
		c.Engine.Language = "en-US"
	}
	if c.Engine.PollIntervalSeconds == 0 {
		c.Engine.PollIntervalSeconds = 10
	}
	if c.Engine.PollTimeoutMinutes == 0 {
		c.Engine.PollTimeoutMinutes = 30
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Retention.WindowDays == 0 {
		c.Retention.WindowDays = 30
	}
	if c.Retention.SweepIntervalHours == 0 {
		c.Retention.SweepIntervalHours = 24
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "data/media.db"
	}
}

// SignedURLExpiry returns the primary-store signed URL lifetime.
func (c *Config) SignedURLExpiry() time.Duration {
	return time.Duration(c.PrimaryStore.SignedURLExpiryMinutes) * time.Minute
}

// RetentionWindow returns how long a source binary is kept after its
// transcript completes.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.WindowDays) * 24 * time.Hour
}

// MaxFileSize returns the upload ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}
