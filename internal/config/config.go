// Package config manages mechmon configuration and the .mechmon directory
// structure. It handles loading, saving, and initializing the workspace
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/kilupskalvis/mechmon/internal/core"
)

const (
	MechmonDir = ".mechmon"
	ConfigFile = "config"
	LedgerFile = "ledgers.db"
	HistoryDir = "history"
)

// ModelConfig declares one monitored model and its test corpora.
type ModelConfig struct {
	Name    string   `toml:"name"`
	Corpora []string `toml:"corpora"`
}

// RemoteConfig points pipelines at a central history server instead of the
// local store.
type RemoteConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// Config represents the mechmon workspace configuration.
type Config struct {
	Models      []ModelConfig `toml:"models"`
	Remote      RemoteConfig  `toml:"remote"`
	WebhookURLs []string      `toml:"webhook_urls"`

	path string // path to .mechmon directory
}

// FindRoot finds the .mechmon directory by walking up from the current
// directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		p := filepath.Join(dir, MechmonDir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a mechmon workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .mechmon directory.
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration from an explicit .mechmon directory.
func LoadFrom(root string) (*Config, error) {
	configPath := filepath.Join(root, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = root
	return &cfg, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// Path returns the path to the .mechmon directory.
func (c *Config) Path() string {
	return c.path
}

// LedgerPath returns the path to the novelty ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.path, LedgerFile)
}

// HistoryPath returns the path to the local history store.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.path, HistoryDir)
}

// UseRemote reports whether pipelines should talk to a history server.
func (c *Config) UseRemote() bool {
	return c.Remote.URL != ""
}

// EntityIDs returns every entity this workspace tracks: one per model plus
// one per model and corpus pair.
func (c *Config) EntityIDs() []string {
	var ids []string
	for _, m := range c.Models {
		ids = append(ids, m.Name)
		for _, corpus := range m.Corpora {
			ids = append(ids, core.TestEntityID(m.Name, corpus))
		}
	}
	return ids
}

// Model returns the configuration for a named model, or nil.
func (c *Config) Model(name string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}

// Initialize creates a new .mechmon directory with initial configuration.
func Initialize(models []ModelConfig) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root := filepath.Join(cwd, MechmonDir)

	// Check if already initialized
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("mechmon workspace already exists")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .mechmon directory: %w", err)
	}

	historyPath := filepath.Join(root, HistoryDir)
	if err := os.MkdirAll(historyPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	cfg := &Config{
		Models: models,
		path:   root,
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(root)
		return nil, err
	}

	return cfg, nil
}
