package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// FiscalConfigRepository stores the fiscal printer configuration as a single row
type FiscalConfigRepository struct {
	*BaseRepository[models.FiscalConfig]
}

// NewFiscalConfigRepository creates a new SQLite fiscal config repository
func NewFiscalConfigRepository(db *sql.DB, logger *logrus.Logger) *FiscalConfigRepository {
	return &FiscalConfigRepository{
		BaseRepository: NewBaseRepository[models.FiscalConfig](db, "fiscal_config", logger),
	}
}

// UpdateFiscalConfig replaces the stored configuration
func (r *FiscalConfigRepository) UpdateFiscalConfig(ctx context.Context, cfg *models.FiscalConfig) error {
	if cfg == nil {
		return repositories.ValidationError("fiscal_config", "1", errNilFiscalConfig)
	}

	updatedAt := cfg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO fiscal_config (
			id, provider, ip_address, port, operator_code, operator_password,
			username, password, default_tax_rate, is_active, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			ip_address = excluded.ip_address,
			port = excluded.port,
			operator_code = excluded.operator_code,
			operator_password = excluded.operator_password,
			username = excluded.username,
			password = excluded.password,
			default_tax_rate = excluded.default_tax_rate,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`

	_, err := r.executeExec(ctx, "update", query,
		string(cfg.Provider),
		cfg.IPAddress,
		cfg.Port,
		cfg.OperatorCode,
		cfg.OperatorPassword,
		cfg.Username,
		cfg.Password,
		cfg.DefaultTaxRate,
		cfg.IsActive,
		updatedAt,
	)
	return err
}

// GetFiscalConfig returns the stored configuration or nil if none was synced
func (r *FiscalConfigRepository) GetFiscalConfig(ctx context.Context) (*models.FiscalConfig, error) {
	query := `
		SELECT provider, ip_address, port, operator_code, operator_password,
			   username, password, default_tax_rate, is_active, updated_at
		FROM fiscal_config
		WHERE id = 1`

	row := r.executeQueryRow(ctx, "get", query)

	cfg := &models.FiscalConfig{}
	err := row.Scan(
		&cfg.Provider,
		&cfg.IPAddress,
		&cfg.Port,
		&cfg.OperatorCode,
		&cfg.OperatorPassword,
		&cfg.Username,
		&cfg.Password,
		&cfg.DefaultTaxRate,
		&cfg.IsActive,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, repositories.NewRepositoryError("get", "fiscal_config", "1", err)
	}

	return cfg, nil
}
