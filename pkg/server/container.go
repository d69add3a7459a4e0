// Package server wires configuration, storage, transport and services into a
// runnable kiosk agent.
package server

import (
	"context"
	"fmt"
	"io"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/adapters/fiscal"
	"github.com/rbutdayev/xpos-sub008/internal/config"
	"github.com/rbutdayev/xpos-sub008/internal/database"
	"github.com/rbutdayev/xpos-sub008/internal/handlers"
	"github.com/rbutdayev/xpos-sub008/internal/logging"
	"github.com/rbutdayev/xpos-sub008/internal/metrics"
	"github.com/rbutdayev/xpos-sub008/internal/middleware"
	"github.com/rbutdayev/xpos-sub008/internal/repositories/sqlite"
	"github.com/rbutdayev/xpos-sub008/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Client   *backend.Client
	Metrics  *metrics.Metrics
	Sessions *middleware.SessionManager
	Services *services.ServiceContainer

	db        *database.ConnectionManager
	logCloser io.Closer
}

// NewContainer validates cfg, opens the local database (migrating it when
// configured) and builds every service. Close releases what it opened.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	container := &Container{
		Config:    cfg,
		Logger:    logger,
		logCloser: logCloser,
	}

	db, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.db = db

	store := sqlite.NewStore(db.GetDB(), logger)
	container.Metrics = metrics.New(metrics.DefaultNamespace)

	clientConfig := cfg.Backend.ToClientConfig("kiosk-sync/"+cfg.Kiosk.Version, logger)
	clientConfig.Observer = container.Metrics
	client, err := backend.NewClient(clientConfig)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	container.Client = client

	printer := fiscal.NewPrinter(fiscal.Options{
		Timeout: cfg.Fiscal.Timeout,
		Logger:  logger,
	})

	serviceContainer, err := services.NewServiceContainer(client, store, printer, &services.ServiceConfig{
		Sync: cfg.Sync,
		Device: services.DeviceInfo{
			DeviceID:   cfg.Kiosk.DeviceID,
			DeviceName: cfg.Kiosk.DeviceName,
			BranchID:   cfg.Kiosk.BranchID,
			Version:    cfg.Kiosk.Version,
		},
		Recorder: container.Metrics,
		Logger:   logger,
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to create service container: %w", err)
	}
	container.Services = serviceContainer

	sessions, err := middleware.NewSessionManager(middleware.SessionConfig{
		Secret: cfg.API.SessionSecret,
		TTL:    cfg.API.SessionTTL,
	})
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Sessions = sessions

	return container, nil
}

// OpenDatabase connects to the kiosk database described by cfg
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*database.ConnectionManager, error) {
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Database.EnsureDirectories(); err != nil {
		return nil, err
	}

	db := database.NewConnectionManager(cfg.Database.ToConnectionConfig(logger))
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Database returns the connection manager
func (c *Container) Database() *database.ConnectionManager {
	return c.db
}

// Router builds the local control API
func (c *Container) Router() *gin.Engine {
	routerConfig := &handlers.RouterConfig{
		Sync:     c.Services.Sync,
		Events:   c.Services.Events,
		Sales:    c.Services.Sales,
		Catalog:  c.Services.Catalog,
		Device:   c.Services.Device,
		Auth:     c.Services.Auth,
		Health:   c.db,
		Sessions: c.Sessions,
		Metrics:  c.Metrics.Handler(),
		API:      c.Config.API,
		Version:  c.Config.Kiosk.Version,
		Logger:   c.Logger,
	}
	if c.Services.Fiscal != nil {
		routerConfig.Fiscal = c.Services.Fiscal
	}
	return handlers.NewRouter(routerConfig)
}

// Close stops background work and releases the database and log file
func (c *Container) Close() error {
	if c.Services != nil {
		c.Services.Sync.Stop()
	}

	var firstErr error
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close database: %w", err)
		}
	}
	if c.logCloser != nil {
		if err := c.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close log file: %w", err)
		}
	}
	return firstErr
}
