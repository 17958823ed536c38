package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults used when the config file leaves a field empty.
const (
	DefaultAPIBase   = "http://localhost:5000"
	DefaultSocketURL = "ws://localhost:5000/socket"
)

// Config represents the global ~/.gram/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	APIBase        string `toml:"api_base"`
	SocketURL      string `toml:"socket_url"`
	TokenSecret    string `toml:"token_secret"`
}

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to the
// built-in defaults when no file exists yet.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
		cfg.applyDefaults()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.SocketURL == "" {
		c.SocketURL = DefaultSocketURL
	}
}
