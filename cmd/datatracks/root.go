package main

import (
	"github.com/spf13/cobra"
)

// Global flag values shared by every subcommand.
var (
	flagConfigPath string
	flagLogLevel   string
	flagLogFormat  string
)

var rootCmd = &cobra.Command{
	Use:     "datatracks",
	Short:   "datatracks runs a plan-driven streaming engine",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file (json/yaml/toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override config log_level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "override config log_format (json/text)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(replayCmd)
}
