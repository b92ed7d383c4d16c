package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jdziat/durableflow/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the executions/calls schema",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		store, err := openStorage(cfg.DatabaseDSN, cfg.DatabasePoolProfile)
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := store.Start(ctx); err != nil {
			return err
		}
		return store.Migrate(ctx)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
