package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// UserRepository implements repositories.UserRepository for SQLite
type UserRepository struct {
	*BaseRepository[models.User]
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(db *sql.DB, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository[models.User](db, "users", logger),
	}
}

// UpsertUsers inserts or replaces users by primary id
func (r *UserRepository) UpsertUsers(ctx context.Context, users []models.User) error {
	query := `
		INSERT INTO users (id, username, full_name, role, password_hash, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			role = excluded.role,
			password_hash = excluded.password_hash,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`

	return r.upsertAll(ctx, users, query, func(u models.User) []interface{} {
		return []interface{}{
			u.ID, strings.ToLower(u.Username), u.FullName, u.Role,
			u.PasswordHash, u.IsActive, u.UpdatedAt,
		}
	})
}

// DeleteUsers removes users by id
func (r *UserRepository) DeleteUsers(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, ids)
}

// GetUserByUsername returns the most recently updated active user with that name
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	query := `
		SELECT id, username, full_name, role, password_hash, is_active, updated_at
		FROM users
		WHERE username = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT 1`

	row := r.executeQueryRow(ctx, "get_by_username", query, name)

	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.PasswordHash, &u.IsActive, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.NotFoundError("user", name)
		}
		return nil, repositories.NewRepositoryError("get_by_username", "user", name, err)
	}

	return u, nil
}
