package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/searchmux/searchmux/pkg/core"
)

//go:embed config.toml.sample
var configTemplate string

type Config struct {
	Listen     string                  `toml:"listen"`
	StorageDir string                  `toml:"storage_dir"`
	Cache      CacheConfig             `toml:"cache"`
	Analytics  AnalyticsConfig         `toml:"analytics"`
	Enrichment *EnrichmentConfig       `toml:"enrichment,omitempty"`
	Providers  map[string]ProviderInfo `toml:"providers"`
}

type CacheConfig struct {
	Capacity      int      `toml:"capacity"`
	SweepInterval Duration `toml:"sweep_interval"`
}

type AnalyticsConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// EnrichmentConfig points at an optional HTTP service that re-scores and
// annotates merged results. When absent, provider-native scores are used.
type EnrichmentConfig struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type ProviderInfo struct {
	Type    string `toml:"type"`
	Enabled *bool  `toml:"enabled,omitempty"`
	// Priority orders sequential dispatch; lower runs first. Defaults to 100.
	Priority int `toml:"priority,omitempty"`
	// Timeout bounds a single provider call. If not specified, defaults
	// to 10 seconds.
	Timeout *Duration   `toml:"timeout,omitempty"`
	Config  interface{} `toml:"config"`
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		Listen:     ":8787",
		StorageDir: storageDir,
		Cache: CacheConfig{
			Capacity:      1000,
			SweepInterval: Duration{5 * time.Minute},
		},
		Analytics: AnalyticsConfig{Enabled: true},
		Providers: make(map[string]ProviderInfo),
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.Listen == "" {
		config.Listen = ":8787"
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	if config.Cache.Capacity <= 0 {
		config.Cache.Capacity = 1000
	}
	if config.Cache.SweepInterval.Duration == 0 {
		config.Cache.SweepInterval = Duration{5 * time.Minute}
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderInfo)
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	template := strings.Replace(configTemplate, "/home/user/.local/share/searchmux", storageDir, 1)
	return template, nil
}

func (c *Config) AddProvider(name, providerType string, providerConfig interface{}) error {
	info := ProviderInfo{
		Type:   providerType,
		Config: providerConfig,
	}

	c.Providers[name] = info
	return nil
}

func (c *Config) GetProviderConfig(name string) (string, interface{}, error) {
	info, exists := c.Providers[name]
	if !exists {
		return "", nil, fmt.Errorf("provider %s not found", name)
	}

	return info.Type, info.Config, nil
}

// ProviderSpecs translates the configured provider table into dispatch
// specs, applying defaults for omitted fields.
func (c *Config) ProviderSpecs() []core.ProviderSpec {
	specs := make([]core.ProviderSpec, 0, len(c.Providers))
	for name, info := range c.Providers {
		spec := core.ProviderSpec{
			Name:     name,
			Type:     info.Type,
			Enabled:  true,
			Priority: 100,
			Timeout:  core.DefaultProviderTimeout,
		}
		if info.Enabled != nil {
			spec.Enabled = *info.Enabled
		}
		if info.Priority > 0 {
			spec.Priority = info.Priority
		}
		if info.Timeout != nil && info.Timeout.Duration > 0 {
			spec.Timeout = info.Timeout.Duration
		}
		specs = append(specs, spec)
	}
	return specs
}

func (c *Config) ListProviders() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	return names
}

func (c *Config) RemoveProvider(name string) {
	delete(c.Providers, name)
}

// AnalyticsDBPath resolves the analytics database location, defaulting to
// searches.db under the storage directory.
func (c *Config) AnalyticsDBPath() string {
	if c.Analytics.DBPath != "" {
		return c.Analytics.DBPath
	}
	return filepath.Join(c.StorageDir, "searches.db")
}

// GetDefaultStorageDir returns the default storage directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	muxDir := filepath.Join(dataDir, "searchmux")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(muxDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", muxDir, err)
	}

	return muxDir, nil
}

// GetConfigDir returns the configuration directory for searchmux
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	muxConfigDir := filepath.Join(configDir, "searchmux")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(muxConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", muxConfigDir, err)
	}

	return muxConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
