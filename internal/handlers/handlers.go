package handlers

import (
	"context"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/database"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/services"
)

// SyncController is the orchestrator surface the API exposes
type SyncController interface {
	GetSyncStatus() models.SyncStatusSnapshot
	SyncNow(ctx context.Context) error
}

// EventSource delivers every published event to handler until unsubscribed
type EventSource interface {
	SubscribeAll(handler services.Handler) func()
}

// SaleRecorder records and looks up kiosk sales
type SaleRecorder interface {
	RecordSale(ctx context.Context, sale *models.Sale) (*services.RecordSaleResult, error)
	GetSaleStatus(ctx context.Context, localID int64) (*services.SaleStatusResult, error)
}

// CatalogSearcher searches products and customers
type CatalogSearcher interface {
	SearchProducts(ctx context.Context, term string, limit int) (*services.SearchResult[models.Product], error)
	SearchCustomers(ctx context.Context, term string, limit int) (*services.SearchResult[models.Customer], error)
}

// DeviceManager registers and disconnects this kiosk
type DeviceManager interface {
	Register(ctx context.Context, registrationCode string) (*backend.RegisterResponse, error)
	Disconnect(ctx context.Context) error
	IsRegistered() bool
	Info() services.DeviceInfo
}

// OfflineAuthenticator checks operator credentials against synced users
type OfflineAuthenticator interface {
	OfflineLogin(ctx context.Context, username, password string) (*models.User, error)
}

// FiscalTester probes the configured fiscal printer
type FiscalTester interface {
	TestConnection(ctx context.Context) (*models.FiscalConnectionResult, error)
}

// HealthChecker reports local database health
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthStatus
}

var (
	_ SyncController       = (*services.SyncService)(nil)
	_ EventSource          = (*services.EventBus)(nil)
	_ SaleRecorder         = (*services.SaleService)(nil)
	_ CatalogSearcher      = (*services.CatalogService)(nil)
	_ DeviceManager        = (*services.DeviceService)(nil)
	_ OfflineAuthenticator = (*services.AuthService)(nil)
	_ FiscalTester         = (*services.FiscalService)(nil)
	_ HealthChecker        = (*database.ConnectionManager)(nil)
)
