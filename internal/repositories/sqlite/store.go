package sqlite

import (
	"database/sql"
	"errors"

	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

var (
	errNilSale         = errors.New("sale is nil")
	errNilFiscalConfig = errors.New("fiscal config is nil")
)

// Store groups every SQLite repository behind the local storage contracts
type Store struct {
	*SaleQueueRepository
	*ProductRepository
	*CustomerRepository
	*UserRepository
	*FiscalConfigRepository
	*SyncMetadataRepository
	*SettingsRepository

	db *sql.DB
}

var _ repositories.SyncStore = (*Store)(nil)
var _ repositories.SettingsRepository = (*Store)(nil)

// NewStore creates all repositories over an open database connection
func NewStore(db *sql.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}

	return &Store{
		SaleQueueRepository:    NewSaleQueueRepository(db, logger),
		ProductRepository:      NewProductRepository(db, logger),
		CustomerRepository:     NewCustomerRepository(db, logger),
		UserRepository:         NewUserRepository(db, logger),
		FiscalConfigRepository: NewFiscalConfigRepository(db, logger),
		SyncMetadataRepository: NewSyncMetadataRepository(db, logger),
		SettingsRepository:     NewSettingsRepository(db, logger),
		db:                     db,
	}
}

// DB returns the underlying connection
func (s *Store) DB() *sql.DB {
	return s.db
}
