package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all herald configuration.
type Config struct {
	Log          LogConfig         `mapstructure:"log"`
	Task         string            `mapstructure:"task"`
	Notification string            `mapstructure:"notification"`
	Chat         ChatConfig        `mapstructure:"chat"`
	Email        map[string]string `mapstructure:"email"`
	History      HistoryConfig     `mapstructure:"history"`
}

// LogConfig defines where per-run log files are written.
type LogConfig struct {
	Dir string `mapstructure:"dir"`
}

// ChatConfig defines the Mattermost webhook settings.
type ChatConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
}

// HistoryConfig defines the run-history database settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".herald"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("log.dir", filepath.Join(home, ".herald", "logs"))
	v.SetDefault("task", "default")
	v.SetDefault("notification", "")
	v.SetDefault("chat.username", "herald")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", filepath.Join(home, ".herald", "herald.db"))

	// Environment variables
	v.SetEnvPrefix("HERALD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
