package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	API     APIConfig
	Catalog CatalogConfig
	Export  ExportConfig
	UI      UIConfig
}

// APIConfig holds planning service settings.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CatalogConfig holds label catalog settings. Dir points at a directory of
// seed JSON files; Remote switches on name hydration from the planning
// service at startup.
type CatalogConfig struct {
	Dir    string `mapstructure:"dir"`
	Remote bool   `mapstructure:"remote"`
}

// ExportConfig holds export destination settings.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ShowNames        bool    `mapstructure:"show_names"`
	DefaultCity      string  `mapstructure:"default_city"`
	DefaultDays      int     `mapstructure:"default_days"`
	DefaultDetourMin float64 `mapstructure:"default_detour_min"`
}

// Load reads configuration from file and env. Env var overrides use prefix CITYROUTE_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("catalog.dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "cityroute", "seeds"))
	v.SetDefault("catalog.remote", false)
	v.SetDefault("export.dir", filepath.Join(os.Getenv("HOME"), "Downloads"))
	v.SetDefault("ui.show_names", true)
	v.SetDefault("ui.default_city", "Pittsburgh")
	v.SetDefault("ui.default_days", 3)
	v.SetDefault("ui.default_detour_min", 15)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("CITYROUTE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "cityroute"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CITYROUTE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if
// needed. Used by the settings command in the TUI.
func Save(cfg Config) error {
	path := os.Getenv("CITYROUTE_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "cityroute", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout_seconds", cfg.API.TimeoutSeconds)
	v.Set("catalog.dir", cfg.Catalog.Dir)
	v.Set("catalog.remote", cfg.Catalog.Remote)
	v.Set("export.dir", cfg.Export.Dir)
	v.Set("ui.show_names", cfg.UI.ShowNames)
	v.Set("ui.default_city", cfg.UI.DefaultCity)
	v.Set("ui.default_days", cfg.UI.DefaultDays)
	v.Set("ui.default_detour_min", cfg.UI.DefaultDetourMin)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
