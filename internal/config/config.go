// Package config loads service configuration from an optional YAML file
// merged with LUNA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Voice   VoiceConfig   `mapstructure:"voice"`
	Session SessionConfig `mapstructure:"session"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type GeminiConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type VoiceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Profile string `mapstructure:"profile"`
}

type SessionConfig struct {
	TTLHours       int `mapstructure:"ttl_hours"`
	MemoryWindow   int `mapstructure:"memory_window"`
	JanitorMinutes int `mapstructure:"janitor_minutes"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from ~/.luna/config.yaml (when present) merged
// with LUNA_* environment variables. Example override:
// LUNA_GEMINI_API_KEY, LUNA_SERVER_PORT.
func Load() (Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolving home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".luna", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path. A missing
// file is not an error; defaults plus environment variables apply.
func LoadFromPath(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LUNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.jwt_secret", "")

	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-pro")

	v.SetDefault("voice.enabled", false)
	v.SetDefault("voice.base_url", "http://localhost:50051")
	v.SetDefault("voice.profile", "English-US.Female-1")

	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("session.memory_window", 10)
	v.SetDefault("session.janitor_minutes", 60)

	v.SetDefault("storage.data_dir", defaultDataDir())
	v.SetDefault("logging.level", "info")
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".luna"
	}
	return filepath.Join(homeDir, ".luna")
}

func (c Config) validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required (set LUNA_GEMINI_API_KEY)")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d outside valid range", c.Server.Port)
	}
	if c.Session.MemoryWindow < 1 {
		return fmt.Errorf("session.memory_window must be at least 1")
	}
	return nil
}
