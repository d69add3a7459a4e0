package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	DatabasePath    string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
	WALMode         bool
	AutoMigrate     bool
	BackupOnMigrate bool
	Logger          *logrus.Logger
}

// DefaultConnectionConfig returns a default configuration
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		DatabasePath:    "./data/kiosk.db",
		MaxOpenConns:    1, // SQLite works best with single connection
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
		WALMode:         true,
		AutoMigrate:     true,
		BackupOnMigrate: true,
		Logger:          logrus.New(),
	}
}

// ConnectionFactory opens configured SQLite connections
type ConnectionFactory struct {
	logger *logrus.Logger
}

// NewConnectionFactory creates a new connection factory
func NewConnectionFactory(logger *logrus.Logger) *ConnectionFactory {
	if logger == nil {
		logger = logrus.New()
	}
	return &ConnectionFactory{
		logger: logger,
	}
}

// Open creates the database directory if needed and returns a pinged connection
func (f *ConnectionFactory) Open(ctx context.Context, config *ConnectionConfig) (*sql.DB, error) {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = DefaultConnectionConfig().DatabasePath
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := buildSQLiteDSN(absPath, config)

	f.logger.WithFields(logrus.Fields{
		"driver": "sqlite3",
		"path":   absPath,
	}).Info("Opening SQLite database")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	f.configureConnectionPool(db, config)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	f.applySQLiteSettings(ctx, db)

	f.logger.WithField("path", absPath).Info("SQLite connection established")
	return db, nil
}

// buildSQLiteDSN builds a go-sqlite3 DSN with connection options
func buildSQLiteDSN(path string, config *ConnectionConfig) string {
	options := []string{"_foreign_keys=on"}

	if config.WALMode {
		options = append(options, "_journal_mode=WAL", "_synchronous=NORMAL")
	}

	if config.BusyTimeout > 0 {
		options = append(options, fmt.Sprintf("_busy_timeout=%d", config.BusyTimeout.Milliseconds()))
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(options, "&"))
}

// applySQLiteSettings applies best-effort PRAGMAs
func (f *ConnectionFactory) applySQLiteSettings(ctx context.Context, db *sql.DB) {
	settings := []string{
		"PRAGMA temp_store = MEMORY",
		"PRAGMA optimize",
	}

	for _, setting := range settings {
		if _, err := db.ExecContext(ctx, setting); err != nil {
			f.logger.WithError(err).WithField("setting", setting).Warn("Failed to apply SQLite setting")
		} else {
			f.logger.WithField("setting", setting).Debug("Applied SQLite setting")
		}
	}
}

// configureConnectionPool configures the database connection pool
func (f *ConnectionFactory) configureConnectionPool(db *sql.DB, config *ConnectionConfig) {
	maxOpen := config.MaxOpenConns
	if maxOpen < 1 {
		maxOpen = 1
	}
	maxIdle := config.MaxIdleConns
	if maxIdle < 1 {
		maxIdle = 1
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	f.logger.WithFields(logrus.Fields{
		"max_open_conns":    maxOpen,
		"max_idle_conns":    maxIdle,
		"conn_max_lifetime": config.ConnMaxLifetime,
	}).Debug("Configured connection pool")
}
