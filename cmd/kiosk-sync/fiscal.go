package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fiscalTestCmd = &cobra.Command{
	Use:   "fiscal-test",
	Short: "Check that the configured fiscal printer answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		container, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer container.Close()

		if container.Services.Fiscal == nil {
			return fmt.Errorf("no fiscal printer is configured")
		}

		result, err := container.Services.Fiscal.TestConnection(ctx)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("fiscal printer %s unreachable: %s", result.Provider, result.Error)
		}

		fmt.Printf("Fiscal printer %s answered in %dms\n", result.Provider, result.ElapsedMs)
		return nil
	},
}
