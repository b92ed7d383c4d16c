package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "durableflow",
	Short: "A durable workflow orchestrator",
	Long: `durableflow runs workflow programs through a sandboxed interpreter,
persisting execution state across suspension points so a crash between any
two external calls loses no progress.`,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
}
