package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync agent and the local control API",
	Long: `Start the heartbeat and periodic sync loops and serve the local control API.

The API listens on API_HOST:API_PORT (loopback by default). SIGINT or SIGTERM
stops the loops, cancels any sync in flight and drains open requests.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		container, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer container.Close()

		cfg := container.Config
		logger := container.Logger

		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := &http.Server{
			Addr:              cfg.API.Address(),
			Handler:           container.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if !container.Services.Device.IsRegistered() {
			logger.Warn("Device is not registered; sync will fail until POST /api/v1/device/register succeeds")
		}
		container.Services.Sync.Start()

		serveErr := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		logger.WithFields(logrus.Fields{
			"address":   srv.Addr,
			"device_id": cfg.Kiosk.DeviceID,
			"version":   cfg.Kiosk.Version,
		}).Info("Kiosk agent started")

		select {
		case <-ctx.Done():
			logger.Info("Shutting down kiosk agent...")
		case err := <-serveErr:
			if err != nil {
				container.Services.Sync.Stop()
				return fmt.Errorf("failed to start local API: %w", err)
			}
		}

		container.Services.Sync.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Info("Kiosk agent exited")
		return nil
	},
}
