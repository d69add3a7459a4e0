package repositories

import (
	"context"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"
)

// SaleQueueRepository stores sales recorded while the backend may be unreachable
type SaleQueueRepository interface {
	// QueueSale stores a sale and assigns its local ID
	QueueSale(ctx context.Context, sale *models.Sale) (*models.QueuedSale, error)

	// GetQueuedSales returns every sale that has not been acknowledged by the backend
	GetQueuedSales(ctx context.Context) ([]*models.QueuedSale, error)

	// GetQueuedSale returns a single sale by local ID, synced or not
	GetQueuedSale(ctx context.Context, localID int64) (*models.QueuedSale, error)

	// MarkSaleAsSynced records the backend ID of an acknowledged sale
	MarkSaleAsSynced(ctx context.Context, localID, serverSaleID int64) error

	// MarkSaleAsFailed records a per-sale rejection
	MarkSaleAsFailed(ctx context.Context, localID int64, reason string) error

	// UpdateSaleRetryCount increments the retry counter of a sale
	UpdateSaleRetryCount(ctx context.Context, localID int64) error

	// CountQueuedSales returns the number of unacknowledged sales
	CountQueuedSales(ctx context.Context) (int64, error)
}

// ProductRepository mirrors the backend catalogue
type ProductRepository interface {
	UpsertProducts(ctx context.Context, products []models.Product) error
	DeleteProducts(ctx context.Context, ids []int64) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)

	// SearchProducts matches name, SKU or barcode
	SearchProducts(ctx context.Context, query string, limit int) ([]*models.Product, error)
}

// CustomerRepository mirrors backend customers
type CustomerRepository interface {
	UpsertCustomers(ctx context.Context, customers []models.Customer) error
	DeleteCustomers(ctx context.Context, ids []int64) error

	// SearchCustomers matches name, phone, email or loyalty card number
	SearchCustomers(ctx context.Context, query string, limit int) ([]*models.Customer, error)
}

// UserRepository mirrors kiosk operators for offline login
type UserRepository interface {
	UpsertUsers(ctx context.Context, users []models.User) error
	DeleteUsers(ctx context.Context, ids []int64) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// FiscalConfigRepository stores the single fiscal printer configuration
type FiscalConfigRepository interface {
	UpdateFiscalConfig(ctx context.Context, cfg *models.FiscalConfig) error

	// GetFiscalConfig returns nil without error when no config has been synced
	GetFiscalConfig(ctx context.Context) (*models.FiscalConfig, error)
}

// SyncMetadataRepository keeps a watermark per synced resource
type SyncMetadataRepository interface {
	// GetLastSyncTime returns nil when the resource was never synced
	GetLastSyncTime(ctx context.Context, resource models.SyncResource) (*time.Time, error)
	UpdateSyncMetadata(ctx context.Context, resource models.SyncResource, at time.Time) error
}

// SettingsRepository is a small key/value store for device state
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// SyncStore is everything the sync orchestrator needs from local storage
type SyncStore interface {
	SaleQueueRepository
	ProductRepository
	CustomerRepository
	UserRepository
	FiscalConfigRepository
	SyncMetadataRepository
}
