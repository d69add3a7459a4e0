package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbutdayev/xpos-sub008/internal/config"
	"github.com/rbutdayev/xpos-sub008/pkg/server"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "kiosk-sync",
	Short: "Offline-first POS kiosk agent",
	Long: `kiosk-sync keeps a POS kiosk working while the central backend is unreachable.

It queues sales in a local SQLite database, uploads them when connectivity
returns, pulls catalog deltas and prints fiscal receipts. Configuration is read
from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(fiscalTestCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cfg.Kiosk.Version == "" || cfg.Kiosk.Version == "dev" {
		cfg.Kiosk.Version = version
	}
	return cfg, nil
}

// openContainer builds the full agent and restores the persisted device token
func openContainer(ctx context.Context) (*server.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	container, err := server.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := container.Services.Device.Restore(ctx); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to restore device state: %w", err)
	}
	return container, nil
}
