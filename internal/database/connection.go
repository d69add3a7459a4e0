package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ConnectionManager owns the kiosk database connection and its schema
type ConnectionManager struct {
	config  *ConnectionConfig
	factory *ConnectionFactory

	mu sync.Mutex
	db *sql.DB
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(config *ConnectionConfig) *ConnectionManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return &ConnectionManager{
		config:  config,
		factory: NewConnectionFactory(config.Logger),
	}
}

// Connect opens the database and, when AutoMigrate is set, brings the schema up to date
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.db != nil {
		return fmt.Errorf("database connection already established")
	}

	db, err := cm.factory.Open(ctx, cm.config)
	if err != nil {
		return err
	}

	if cm.config.AutoMigrate {
		migrations := NewMigrationManager(db, cm.config.Logger).WithBackup(cm.config.BackupOnMigrate)
		if err := migrations.RunMigrations(); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if err := migrations.ValidateSchema(); err != nil {
			db.Close()
			return fmt.Errorf("schema validation failed: %w", err)
		}
	}

	cm.db = db
	return nil
}

// GetDB returns the database connection
func (cm *ConnectionManager) GetDB() *sql.DB {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.db
}

// Close closes the database connection
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.db == nil {
		return nil
	}

	err := cm.db.Close()
	cm.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	cm.config.Logger.Info("Database connection closed")
	return nil
}

// Ping tests the database connection
func (cm *ConnectionManager) Ping(ctx context.Context) error {
	db := cm.GetDB()
	if db == nil {
		return fmt.Errorf("database connection not established")
	}
	return db.PingContext(ctx)
}

// GetMigrationManager returns a migration manager bound to the open connection
func (cm *ConnectionManager) GetMigrationManager() (*MigrationManager, error) {
	db := cm.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return NewMigrationManager(db, cm.config.Logger).WithBackup(cm.config.BackupOnMigrate), nil
}

// HealthStatus reports database health
type HealthStatus struct {
	Healthy          bool   `json:"healthy"`
	MigrationVersion uint   `json:"migration_version"`
	ForeignKeys      bool   `json:"foreign_keys"`
	QueuedSales      int    `json:"queued_sales"`
	Error            string `json:"error,omitempty"`
}

// HealthCheck verifies the connection, the schema version and pending queue size
func (cm *ConnectionManager) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{}

	if err := cm.Ping(ctx); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return status
	}

	db := cm.GetDB()

	var foreignKeys int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		status.Error = fmt.Sprintf("failed to check foreign keys: %v", err)
		return status
	}
	status.ForeignKeys = foreignKeys == 1

	info, err := NewMigrationManager(db, cm.config.Logger).GetMigrationStatus()
	if err != nil {
		status.Error = fmt.Sprintf("failed to get migration status: %v", err)
		return status
	}
	if info.Dirty {
		status.Error = fmt.Sprintf("migration %d is dirty", info.Version)
		return status
	}
	status.MigrationVersion = info.Version

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_sales WHERE sync_status != 'synced'`).Scan(&status.QueuedSales); err != nil {
		status.Error = fmt.Sprintf("failed to count queued sales: %v", err)
		return status
	}

	status.Healthy = true
	return status
}
