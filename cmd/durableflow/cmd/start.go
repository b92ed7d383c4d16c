package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdziat/durableflow/internal/config"
	"github.com/jdziat/durableflow/internal/core"
)

var (
	startCodeFile   string
	startInputsFile string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Schedule a new execution from a program file",
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

		code, err := os.ReadFile(startCodeFile)
		if err != nil {
			return fmt.Errorf("read program file: %w", err)
		}
		var inputs []byte
		if startInputsFile != "" {
			inputs, err = os.ReadFile(startInputsFile)
			if err != nil {
				return fmt.Errorf("read inputs file: %w", err)
			}
		}

		exec := &core.Execution{Code: code, Inputs: inputs, Status: core.StatusScheduled}
		if err := store.CreateExecution(ctx, exec); err != nil {
			return err
		}
		fmt.Println(exec.ID)
		return nil
	},
}

func init() {
	startCmd.Flags().StringVar(&startCodeFile, "program", "", "path to a JSON program file")
	startCmd.Flags().StringVar(&startInputsFile, "inputs", "", "path to a JSON inputs file")
	startCmd.MarkFlagRequired("program")
	rootCmd.AddCommand(startCmd)
}
