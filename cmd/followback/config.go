package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"followback/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging defaults, config file, environment, and flags. The token is masked.`,
	Run:   runConfigShow,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	Run:   runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		fail("failed to load config file", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fail("failed to load environment", err)
	}
	cfg.MergeCommandLineFlags(globalFlags())

	// Never print the token
	if cfg.GitHub.Token != "" {
		cfg.GitHub.Token = "********"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fail("failed to render config", err)
	}
	fmt.Print(string(data))
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := ".followback.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		fail(fmt.Sprintf("config file already exists at %s", path), nil)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		fail("failed to write config file", err)
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	fmt.Println("Set github.username and github.token, or export GITHUB_USER and PERSONAL_GITHUB_TOKEN.")
}
