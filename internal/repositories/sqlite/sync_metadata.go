package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// SyncMetadataRepository keeps one watermark row per resource
type SyncMetadataRepository struct {
	*BaseRepository[time.Time]
}

// NewSyncMetadataRepository creates a new SQLite sync metadata repository
func NewSyncMetadataRepository(db *sql.DB, logger *logrus.Logger) *SyncMetadataRepository {
	return &SyncMetadataRepository{
		BaseRepository: NewBaseRepository[time.Time](db, "sync_metadata", logger),
	}
}

// GetLastSyncTime returns nil when the resource has never been synced
func (r *SyncMetadataRepository) GetLastSyncTime(ctx context.Context, resource models.SyncResource) (*time.Time, error) {
	row := r.executeQueryRow(ctx, "get_watermark", `SELECT last_sync_at FROM sync_metadata WHERE resource = ?`, string(resource))

	var at time.Time
	if err := row.Scan(&at); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, repositories.NewRepositoryError("get_watermark", r.table, string(resource), err)
	}

	at = at.UTC()
	return &at, nil
}

// UpdateSyncMetadata stores the new watermark for a resource
func (r *SyncMetadataRepository) UpdateSyncMetadata(ctx context.Context, resource models.SyncResource, at time.Time) error {
	query := `
		INSERT INTO sync_metadata (resource, last_sync_at) VALUES (?, ?)
		ON CONFLICT(resource) DO UPDATE SET last_sync_at = excluded.last_sync_at`

	_, err := r.executeExec(ctx, "set_watermark", query, string(resource), at.UTC())
	return err
}
