// ABOUTME: Configuration loading for the tokendb admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Catalog    CatalogConfig    `toml:"catalog"`
	Auth       AuthConfig       `toml:"auth"`
	Activation ActivationConfig `toml:"activation"`
}

type CatalogConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	TokenSecret string `toml:"token_secret"`
}

type ActivationConfig struct {
	CodeTTL string `toml:"code_ttl"`
}

// configPath returns the admin config location.
// Priority: TOKENDB_ADMIN_CONFIG env var > XDG_CONFIG_HOME/tokendb/admin.toml > ~/.config/tokendb/admin.toml
func configPath() string {
	if envPath := os.Getenv("TOKENDB_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tokendb", "admin.toml")
}

// loadConfig reads config from the given path, expanding environment variables.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required")
	}
	if c.Activation.CodeTTL != "" {
		if _, err := time.ParseDuration(c.Activation.CodeTTL); err != nil {
			return fmt.Errorf("activation.code_ttl: %w", err)
		}
	}
	return nil
}

// codeTTL returns the parsed activation code TTL, zero when unset.
func (c *Config) codeTTL() time.Duration {
	if c.Activation.CodeTTL == "" {
		return 0
	}
	ttl, _ := time.ParseDuration(c.Activation.CodeTTL)
	return ttl
}
