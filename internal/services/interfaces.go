package services

import (
	"context"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"
)

// BackendAPI is the part of the backend transport the sync orchestrator drives
type BackendAPI interface {
	Heartbeat(ctx context.Context) bool
	GetProductsDelta(ctx context.Context, since *time.Time) (*models.Delta[models.Product], error)
	GetCustomersDelta(ctx context.Context, since *time.Time) (*models.Delta[models.Customer], error)
	GetUsersDelta(ctx context.Context, since *time.Time) (*models.Delta[models.User], error)

	// GetFiscalConfig returns nil when the backend has no config for this branch
	GetFiscalConfig(ctx context.Context) (*models.FiscalConfig, error)
	UploadSales(ctx context.Context, sales []*models.QueuedSale) (*models.UploadSalesResult, error)
}

// SaleAPI uploads single sales outside the batch pipeline
type SaleAPI interface {
	CreateSale(ctx context.Context, localID int64, sale *models.Sale) (*backend.CreateSaleResponse, error)
	GetSaleStatus(ctx context.Context, saleID int64) (*models.SaleStatus, error)
}

// CatalogAPI searches the live backend catalogue
type CatalogAPI interface {
	SearchProducts(ctx context.Context, term string, limit int) ([]*models.Product, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]*models.Customer, error)
}

// DeviceAPI manages the device's backend identity
type DeviceAPI interface {
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.RegisterResponse, error)
	Disconnect(ctx context.Context) error
	SetToken(token string)
	HasToken() bool
}

// FiscalPrinter issues fiscal receipts on the branch device
type FiscalPrinter interface {
	Initialize(cfg *models.FiscalConfig) error
	Provider() models.FiscalProvider
	PrintSaleReceipt(ctx context.Context, sale *models.Sale) *models.FiscalResult
	TestConnection(ctx context.Context) *models.FiscalConnectionResult
}

// Connectivity reports the orchestrator's view of the backend
type Connectivity interface {
	IsOnline() bool
}

// Recorder receives operational measurements
type Recorder interface {
	RecordSync(trigger, result string, duration time.Duration)
	RecordSalesUploaded(synced, failed int)
	RecordFiscalPrint(provider string, success bool)
	SetQueueDepth(n int)
	SetOnline(online bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordSync(string, string, time.Duration) {}
func (nopRecorder) RecordSalesUploaded(int, int)             {}
func (nopRecorder) RecordFiscalPrint(string, bool)           {}
func (nopRecorder) SetQueueDepth(int)                        {}
func (nopRecorder) SetOnline(bool)                           {}
