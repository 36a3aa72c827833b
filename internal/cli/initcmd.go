package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  `Write a starter config.yaml with the default settings filled in.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
}

// starterConfig mirrors config.Config with yaml tags so the generated file
// round-trips through viper.
type starterConfig struct {
	Log struct {
		Dir string `yaml:"dir"`
	} `yaml:"log"`
	Task         string `yaml:"task"`
	Notification string `yaml:"notification"`
	Chat         struct {
		WebhookURL string `yaml:"webhook_url"`
		Channel    string `yaml:"channel"`
		Username   string `yaml:"username"`
	} `yaml:"chat"`
	Email   map[string]string `yaml:"email,omitempty"`
	History struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"history"`
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path = filepath.Join(home, ".herald", "config.yaml")
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	home, _ := os.UserHomeDir()
	var starter starterConfig
	starter.Log.Dir = filepath.Join(home, ".herald", "logs")
	starter.Task = "default"
	starter.Chat.Username = "herald"
	starter.History.Path = filepath.Join(home, ".herald", "herald.db")

	data, err := yaml.Marshal(&starter)
	if err != nil {
		return fmt.Errorf("marshal starter config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
