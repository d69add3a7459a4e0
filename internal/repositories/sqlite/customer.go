package sqlite

import (
	"context"
	"database/sql"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

const customerColumns = `id, name, phone, email, card_number, discount_rate, credit_balance, updated_at`

// CustomerRepository implements repositories.CustomerRepository for SQLite
type CustomerRepository struct {
	*BaseRepository[models.Customer]
}

// NewCustomerRepository creates a new SQLite customer repository
func NewCustomerRepository(db *sql.DB, logger *logrus.Logger) *CustomerRepository {
	return &CustomerRepository{
		BaseRepository: NewBaseRepository[models.Customer](db, "customers", logger),
	}
}

// UpsertCustomers inserts or replaces customers by primary id
func (r *CustomerRepository) UpsertCustomers(ctx context.Context, customers []models.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			card_number = excluded.card_number,
			discount_rate = excluded.discount_rate,
			credit_balance = excluded.credit_balance,
			updated_at = excluded.updated_at`

	return r.upsertAll(ctx, customers, query, func(c models.Customer) []interface{} {
		return []interface{}{
			c.ID, c.Name, c.Phone, c.Email, c.CardNumber,
			c.DiscountRate, c.CreditBalance, c.UpdatedAt,
		}
	})
}

// DeleteCustomers removes customers by id
func (r *CustomerRepository) DeleteCustomers(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, ids)
}

// SearchCustomers matches name, phone, email or card number
func (r *CustomerRepository) SearchCustomers(ctx context.Context, term string, limit int) ([]*models.Customer, error) {
	pattern := likePattern(term)
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE card_number = ?
		   OR name LIKE ? ESCAPE '\'
		   OR phone LIKE ? ESCAPE '\'
		   OR email LIKE ? ESCAPE '\'
		ORDER BY name
		LIMIT ?`

	rows, err := r.executeQuery(ctx, "search", query, term, pattern, pattern, pattern, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c := &models.Customer{}
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Phone,
			&c.Email,
			&c.CardNumber,
			&c.DiscountRate,
			&c.CreditBalance,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, repositories.NewRepositoryError("search", "customer", "", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, repositories.NewRepositoryError("search", "customer", "", err)
	}

	return customers, nil
}
