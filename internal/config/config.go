package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AccountConfig declares one mirrored mailbox. Server settings are resolved
// from the address's provider; the optional IMAP fields override that
// resolution for self-hosted or unusual setups.
type AccountConfig struct {
	// Address is the mailbox address and login name.
	Address string `mapstructure:"address" yaml:"address"`

	// DisplayName is the user-facing label for the account.
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`

	// SyncEnabled controls whether the background engine syncs this account.
	SyncEnabled bool `mapstructure:"sync_enabled" yaml:"sync_enabled"`

	// Watch enables the realtime inbox watcher for this account.
	Watch bool `mapstructure:"watch" yaml:"watch"`

	// IMAPHost/IMAPPort/Encryption override the provider-resolved server.
	// Encryption is one of "ssl", "starttls" or "none".
	IMAPHost   string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort   int    `mapstructure:"imap_port" yaml:"imap_port"`
	Encryption string `mapstructure:"encryption" yaml:"encryption"`
}

// Config is the top-level application configuration
type Config struct {
	// DataPath is the location of the mirror database.
	DataPath string `mapstructure:"data_path" yaml:"data_path"`

	// CredentialDir is where the file-backed keyring stores secrets when no
	// system keyring is available.
	CredentialDir string `mapstructure:"credential_dir" yaml:"credential_dir"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// SyncIntervalSec is how often (in seconds) full account syncs run.
	SyncIntervalSec int `mapstructure:"sync_interval_sec" yaml:"sync_interval_sec"`

	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`
}

// DefaultConfigPath returns ~/.config/gfmail/config.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "gfmail", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "gfmail")
}

func defaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataPath:        filepath.Join(dataDir, "mirror.db"),
		CredentialDir:   filepath.Join(dataDir, "credentials"),
		LogLevel:        "info",
		LogFormat:       "json",
		SyncIntervalSec: 300,
	}
}

// Load reads the YAML configuration at path. A missing file yields the
// defaults; accounts must then be added before the engine does anything.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultConfig()
	v.SetDefault("data_path", defaults.DataPath)
	v.SetDefault("credential_dir", defaults.CredentialDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("sync_interval_sec", defaults.SyncIntervalSec)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Accounts {
		// Viper unmarshals missing bools as false; treat unset as enabled
		if !cfg.Accounts[i].SyncEnabled {
			key := fmt.Sprintf("accounts.%d.sync_enabled", i)
			if !v.IsSet(key) {
				cfg.Accounts[i].SyncEnabled = true
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if c.SyncIntervalSec < 30 {
		return fmt.Errorf("sync_interval_sec must be at least 30, got %d", c.SyncIntervalSec)
	}

	seen := make(map[string]bool)
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.Address == "" {
			return fmt.Errorf("account %d: address is required", i)
		}
		if seen[acc.Address] {
			return fmt.Errorf("account %q configured twice", acc.Address)
		}
		seen[acc.Address] = true

		switch acc.Encryption {
		case "", "ssl", "starttls", "none":
		default:
			return fmt.Errorf("account %q: unknown encryption %q", acc.Address, acc.Encryption)
		}
		if acc.IMAPPort < 0 || acc.IMAPPort > 65535 {
			return fmt.Errorf("account %q: invalid imap_port %d", acc.Address, acc.IMAPPort)
		}
	}
	return nil
}

// Save writes the configuration to a YAML file at path, creating parent
// directories if needed
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("data_path", cfg.DataPath)
	v.Set("credential_dir", cfg.CredentialDir)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("sync_interval_sec", cfg.SyncIntervalSec)
	v.Set("accounts", cfg.Accounts)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
