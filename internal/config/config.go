// Package config handles mailsyncd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/mailsyncd/config.yaml, /config/config.yaml,
// /etc/mailsyncd/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mailsyncd", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/mailsyncd/config.yaml")
	return paths
}

// searchPathsFunc is overridden in tests to avoid picking up real config
// files from the developer's machine.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all mailsyncd configuration.
type Config struct {
	Listen   ListenConfig    `yaml:"listen"`
	Store    StoreConfig     `yaml:"store"`
	LogLevel string          `yaml:"log_level"`
	Accounts []AccountConfig `yaml:"accounts"`
}

// ListenConfig defines the HTTP request-layer bind settings (§4.9).
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "127.0.0.1")
	Port    int    `yaml:"port"`    // Default: 9001, matching the original prototype's port
}

// StoreConfig defines the Cache Store's SQLite database path.
type StoreConfig struct {
	Path string `yaml:"path"` // Default: "./mailsync.db"
}

// AccountConfig seeds a Connection row at startup so a restart can
// reconnect to a previously-seen server without a fresh /login call.
// Password is read from the environment via ${VAR} expansion in Load.
type AccountConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Address  string `yaml:"address"`
	Port     uint16 `yaml:"port"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${IMAP_PASSWORD}) so secrets
	// need not be committed to the config file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 9001
	}
	if c.Listen.Address == "" {
		c.Listen.Address = "127.0.0.1"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./mailsync.db"
	}
	for i := range c.Accounts {
		if c.Accounts[i].Port == 0 {
			c.Accounts[i].Port = 993
		}
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	for i, a := range c.Accounts {
		if a.Username == "" {
			return fmt.Errorf("accounts[%d]: username is required", i)
		}
		if a.Address == "" {
			return fmt.Errorf("accounts[%d] (%s): address is required", i, a.Username)
		}
	}
	return nil
}

// Default returns a default configuration suitable for local
// development: an in-repo SQLite file and the loopback bind address.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
