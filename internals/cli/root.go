// Package cli wires the healthmon commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "healthmon",
	Short: "Service health monitoring engine",
	Long: `healthmon probes HTTP and TCP services on a schedule, derives
UP/DOWN/DEGRADED status from consecutive results, keeps a bounded
history per service and notifies on outages and recoveries.`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (env HEALTHMON_* overrides)")
	rootCmd.AddCommand(serveCmd, probeCmd, tokenCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("healthmon version %s\n", version))
}
