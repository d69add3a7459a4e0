package main

import (
	"fmt"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/services"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass and exit",
	Long: `Probe the backend, then upload queued sales and pull product, customer,
user and fiscal config changes once. Exits non-zero when offline or when a
stage fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		container, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer container.Close()

		syncService := container.Services.Sync
		if !syncService.CheckConnection(ctx) {
			return services.ErrOffline
		}

		start := time.Now()
		if err := syncService.SyncNow(ctx); err != nil {
			return err
		}

		status := syncService.GetSyncStatus()
		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
		for _, msg := range status.Errors {
			fmt.Printf("   warning: %s\n", msg)
		}
		return nil
	},
}
