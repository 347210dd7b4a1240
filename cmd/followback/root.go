package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	stateDir   string
	username   string
	token      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "followback",
	Short: "A GitHub follow-back bot with incremental sync and rate-limit awareness",
	Long: `Followback keeps a GitHub account following everyone who follows it.

Each run fetches the follower listing newest-first, stops at the follower it
processed last time, and follows the new arrivals oldest-first in rate limited
batches. Progress is persisted after every batch, so interrupted runs resume
where they stopped and completed runs are idempotent.

Commands:
  sync    run one follow-back pass
  audit   report follow coverage without performing any follows
  serve   expose the follower listing over a read-only HTTP endpoint
  auth    manage stored GitHub credentials`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .followback.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory holding the bot's state files")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "GitHub username")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "GitHub personal access token")

	rootCmd.SetVersionTemplate(`Followback {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags into the config override map
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if username != "" {
		flags["username"] = username
	}
	if token != "" {
		flags["token"] = token
	}
	if stateDir != "" {
		flags["state-dir"] = stateDir
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	return flags
}
