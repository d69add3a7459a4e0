package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

const queuedSaleColumns = `local_id, payload, retry_count, sync_status, server_sale_id, last_error, updated_at`

// SaleQueueRepository implements repositories.SaleQueueRepository for SQLite
type SaleQueueRepository struct {
	*BaseRepository[models.QueuedSale]
}

// NewSaleQueueRepository creates a new SQLite sale queue repository
func NewSaleQueueRepository(db *sql.DB, logger *logrus.Logger) *SaleQueueRepository {
	return &SaleQueueRepository{
		BaseRepository: NewBaseRepository[models.QueuedSale](db, "queued_sales", logger),
	}
}

// QueueSale stores the sale as an immutable JSON payload
func (r *SaleQueueRepository) QueueSale(ctx context.Context, sale *models.Sale) (*models.QueuedSale, error) {
	if sale == nil {
		return nil, repositories.ValidationError("queued_sale", "", errNilSale)
	}

	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}

	payload, err := json.Marshal(sale)
	if err != nil {
		return nil, repositories.EncodingError("queued_sale", "", err)
	}

	query := `
		INSERT INTO queued_sales (payload, total, retry_count, sync_status, last_error, created_at, updated_at)
		VALUES (?, ?, 0, ?, '', ?, ?)`

	result, err := r.executeExec(ctx, "queue", query, string(payload), sale.Total, models.SyncStatusQueued, sale.CreatedAt, now)
	if err != nil {
		return nil, err
	}

	localID, err := result.LastInsertId()
	if err != nil {
		return nil, repositories.NewRepositoryError("queue", r.table, "", err)
	}

	r.logger.WithFields(logrus.Fields{
		"local_id": localID,
		"total":    sale.Total.StringFixed(2),
	}).Info("Sale queued for upload")

	return &models.QueuedSale{
		LocalID:    localID,
		SyncStatus: models.SyncStatusQueued,
		Sale:       *sale,
		UpdatedAt:  now,
	}, nil
}

// GetQueuedSales returns every sale not yet acknowledged, oldest first
func (r *SaleQueueRepository) GetQueuedSales(ctx context.Context) ([]*models.QueuedSale, error) {
	query := `SELECT ` + queuedSaleColumns + ` FROM queued_sales WHERE sync_status != ? ORDER BY local_id`

	rows, err := r.executeQuery(ctx, "list_queued", query, models.SyncStatusSynced)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []*models.QueuedSale
	for rows.Next() {
		q, err := r.scanQueuedSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, q)
	}

	if err := rows.Err(); err != nil {
		return nil, repositories.NewRepositoryError("list_queued", r.table, "", err)
	}

	return sales, nil
}

// GetQueuedSale returns a single sale by local id
func (r *SaleQueueRepository) GetQueuedSale(ctx context.Context, localID int64) (*models.QueuedSale, error) {
	query := `SELECT ` + queuedSaleColumns + ` FROM queued_sales WHERE local_id = ?`
	row := r.executeQueryRow(ctx, "get_by_id", query, localID)

	q, err := r.scanQueuedSale(row)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, repositories.NotFoundError("queued_sale", strconv.FormatInt(localID, 10))
		}
		return nil, err
	}
	return q, nil
}

// MarkSaleAsSynced records the backend id and clears any previous error
func (r *SaleQueueRepository) MarkSaleAsSynced(ctx context.Context, localID, serverSaleID int64) error {
	query := `
		UPDATE queued_sales
		SET sync_status = ?, server_sale_id = ?, last_error = '', updated_at = ?
		WHERE local_id = ?`

	result, err := r.executeExec(ctx, "mark_synced", query, models.SyncStatusSynced, serverSaleID, time.Now().UTC(), localID)
	if err != nil {
		return err
	}
	return r.checkRowsAffected(result, "mark_synced", strconv.FormatInt(localID, 10))
}

// MarkSaleAsFailed records the backend's rejection reason
func (r *SaleQueueRepository) MarkSaleAsFailed(ctx context.Context, localID int64, reason string) error {
	query := `
		UPDATE queued_sales
		SET sync_status = ?, last_error = ?, updated_at = ?
		WHERE local_id = ?`

	result, err := r.executeExec(ctx, "mark_failed", query, models.SyncStatusFailed, reason, time.Now().UTC(), localID)
	if err != nil {
		return err
	}
	return r.checkRowsAffected(result, "mark_failed", strconv.FormatInt(localID, 10))
}

// UpdateSaleRetryCount increments the retry counter
func (r *SaleQueueRepository) UpdateSaleRetryCount(ctx context.Context, localID int64) error {
	query := `UPDATE queued_sales SET retry_count = retry_count + 1, updated_at = ? WHERE local_id = ?`

	result, err := r.executeExec(ctx, "increment_retry", query, time.Now().UTC(), localID)
	if err != nil {
		return err
	}
	return r.checkRowsAffected(result, "increment_retry", strconv.FormatInt(localID, 10))
}

// CountQueuedSales returns the number of unacknowledged sales
func (r *SaleQueueRepository) CountQueuedSales(ctx context.Context) (int64, error) {
	row := r.executeQueryRow(ctx, "count_queued", `SELECT COUNT(*) FROM queued_sales WHERE sync_status != ?`, models.SyncStatusSynced)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, repositories.NewRepositoryError("count_queued", r.table, "", err)
	}
	return count, nil
}

func (r *SaleQueueRepository) scanQueuedSale(row rowScanner) (*models.QueuedSale, error) {
	var (
		q        models.QueuedSale
		payload  string
		serverID sql.NullInt64
	)

	err := row.Scan(&q.LocalID, &payload, &q.RetryCount, &q.SyncStatus, &serverID, &q.LastError, &q.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.NotFoundError("queued_sale", "")
		}
		return nil, repositories.NewRepositoryError("scan", r.table, "", err)
	}

	if err := json.Unmarshal([]byte(payload), &q.Sale); err != nil {
		return nil, repositories.EncodingError("queued_sale", strconv.FormatInt(q.LocalID, 10), err)
	}

	if serverID.Valid {
		id := serverID.Int64
		q.ServerSaleID = &id
	}

	return &q, nil
}
