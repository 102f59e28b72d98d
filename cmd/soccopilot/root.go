package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config string
}

var rootCmd = &cobra.Command{
	Use:   "soccopilot",
	Short: "Streaming log triage with ensemble risk scoring",
	Long: "SOC Copilot tails log files and directories, batches lines, scores each record\n" +
		"with an anomaly model and a classifier, and emits prioritized alerts.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", "", "Path to soccopilot.yml")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(killswitchCmd)
	rootCmd.Version = version
}
