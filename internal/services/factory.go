package services

import (
	"fmt"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// Store is every local repository the services use
type Store interface {
	repositories.SyncStore
	repositories.SettingsRepository
}

// ServiceContainer holds all service instances
type ServiceContainer struct {
	Events  *EventBus
	Sync    *SyncService
	Sales   *SaleService
	Catalog *CatalogService
	Device  *DeviceService
	Auth    *AuthService
	Fiscal  *FiscalService
}

// ServiceConfig holds configuration for services
type ServiceConfig struct {
	Sync     models.SyncConfig
	Device   DeviceInfo
	Recorder Recorder
	Logger   *logrus.Logger
}

// NewServiceContainer wires every service over one backend client and store
func NewServiceContainer(client *backend.Client, store Store, printer FiscalPrinter, config *ServiceConfig) (*ServiceContainer, error) {
	if client == nil {
		return nil, fmt.Errorf("backend client cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = &ServiceConfig{Sync: models.DefaultSyncConfig()}
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
	}

	events := NewEventBus(logger)
	syncService := NewSyncService(client, store, events, config.Sync, logger).WithRecorder(config.Recorder)

	var fiscalService *FiscalService
	if printer != nil {
		fiscalService = NewFiscalService(store, printer, logger).WithRecorder(config.Recorder)
	}

	return &ServiceContainer{
		Events:  events,
		Sync:    syncService,
		Sales:   NewSaleService(store, client, syncService, fiscalService, logger),
		Catalog: NewCatalogService(store, store, client, syncService, logger),
		Device:  NewDeviceService(client, store, syncService, config.Device, logger),
		Auth:    NewAuthService(store, logger),
		Fiscal:  fiscalService,
	}, nil
}
