// Package config handles configuration loading for stockcards.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"  yaml:"upstream"`
}

// ProvidersConfig holds upstream provider credentials and endpoints.
// Keys are injected into clients at construction; a missing key is not a
// startup error, it surfaces as upstream-unavailable on first use.
type ProvidersConfig struct {
	Polygon PolygonConfig `mapstructure:"polygon" yaml:"polygon"`
	Finnhub FinnhubConfig `mapstructure:"finnhub" yaml:"finnhub"`
}

// PolygonConfig holds the Polygon.io API credential.
type PolygonConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// FinnhubConfig holds the Finnhub API credential.
type FinnhubConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// UpstreamConfig holds shared upstream HTTP behavior.
type UpstreamConfig struct {
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockcards/config.yaml (home directory)
//  3. /etc/stockcards/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKCARDS_<SECTION>_<KEY>, e.g., STOCKCARDS_PROVIDERS_FINNHUB_API_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockcards"))
	v.AddConfigPath("/etc/stockcards")

	v.SetEnvPrefix("STOCKCARDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STOCKCARDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("upstream.timeout_sec", 15)
}

// overrideFromEnv explicitly reads sensitive keys from environment
// variables. The bare POLYGON_KEY / FINNHUB_KEY names are accepted as a
// fallback for deployments that predate the STOCKCARDS_ prefix.
func overrideFromEnv(cfg *Config) {
	for _, name := range []string{"STOCKCARDS_PROVIDERS_POLYGON_API_KEY", "POLYGON_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.Providers.Polygon.APIKey = key
			break
		}
	}
	for _, name := range []string{"STOCKCARDS_PROVIDERS_FINNHUB_API_KEY", "FINNHUB_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.Providers.Finnhub.APIKey = key
			break
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
