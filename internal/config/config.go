// Package config handles acomm configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/acomm/config.yaml, /config/config.yaml,
// /etc/acomm/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "acomm", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/acomm/config.yaml")
	return paths
}

// searchPathsFunc is swapped out in tests to avoid picking up real
// config files on the developer/CI machine.
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

// Config holds all acomm configuration. Credentials for chat-platform
// adapters (Discord/Slack/ntfy) are deliberately NOT part of this
// struct — they are read from environment variables only, so that a
// config file can be committed to a repo without leaking secrets.
type Config struct {
	Socket   SocketConfig   `yaml:"socket"`
	Backlog  BacklogConfig  `yaml:"backlog"`
	Defaults DefaultsConfig `yaml:"defaults"`
	LogLevel string         `yaml:"log_level"`
}

// SocketConfig defines the broker's local stream-socket listener.
type SocketConfig struct {
	// Path is the filesystem path of the Unix domain socket.
	Path string `yaml:"path"`
}

// BacklogConfig bounds the broker's replayable event backlog.
type BacklogConfig struct {
	// MaxEntries is the maximum number of retained backlog events.
	MaxEntries int `yaml:"max_entries"`
}

// DefaultsConfig holds the configured default provider.
type DefaultsConfig struct {
	// Provider is read from the config file and defaults to "gemini".
	// The broker does not read it: a fresh bridge always starts with
	// Gemini and Gemini's default model.
	Provider string `yaml:"provider"`
}

// Configured reports whether a socket path has been set explicitly.
func (c SocketConfig) Configured() bool {
	return c.Path != ""
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${HOME}). This is a
	// convenience for container deployments; the recommended approach
	// is to put values directly in the config file.
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
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Socket.Path == "" {
		c.Socket.Path = "/tmp/acomm.sock"
	}
	if c.Backlog.MaxEntries == 0 {
		c.Backlog.MaxEntries = 100
	}
	if c.Defaults.Provider == "" {
		c.Defaults.Provider = "gemini"
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Backlog.MaxEntries < 1 {
		return fmt.Errorf("backlog.max_entries %d must be positive", c.Backlog.MaxEntries)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local
// development. All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
