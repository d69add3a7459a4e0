package sqlite

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

const productColumns = `id, name, sku, barcode, category, price, tax_rate, unit, is_active, updated_at`

// ProductRepository implements repositories.ProductRepository for SQLite
type ProductRepository struct {
	*BaseRepository[models.Product]
}

// NewProductRepository creates a new SQLite product repository
func NewProductRepository(db *sql.DB, logger *logrus.Logger) *ProductRepository {
	return &ProductRepository{
		BaseRepository: NewBaseRepository[models.Product](db, "products", logger),
	}
}

// UpsertProducts inserts or replaces products by primary id
func (r *ProductRepository) UpsertProducts(ctx context.Context, products []models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sku = excluded.sku,
			barcode = excluded.barcode,
			category = excluded.category,
			price = excluded.price,
			tax_rate = excluded.tax_rate,
			unit = excluded.unit,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`

	return r.upsertAll(ctx, products, query, func(p models.Product) []interface{} {
		return []interface{}{
			p.ID, p.Name, p.SKU, p.Barcode, p.Category,
			p.Price, p.TaxRate, p.Unit, p.IsActive, p.UpdatedAt,
		}
	})
}

// DeleteProducts removes products by id
func (r *ProductRepository) DeleteProducts(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, ids)
}

// GetProduct retrieves a product by id
func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	row := r.executeQueryRow(ctx, "get_by_id", query, id)

	product, err := scanProduct(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.NotFoundError("product", strconv.FormatInt(id, 10))
		}
		return nil, repositories.NewRepositoryError("get_by_id", "product", strconv.FormatInt(id, 10), err)
	}
	return product, nil
}

// SearchProducts performs a case-insensitive match on name, SKU and barcode
func (r *ProductRepository) SearchProducts(ctx context.Context, term string, limit int) ([]*models.Product, error) {
	pattern := likePattern(term)
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active = 1
		  AND (barcode = ? OR name LIKE ? ESCAPE '\' OR sku LIKE ? ESCAPE '\')
		ORDER BY CASE WHEN barcode = ? THEN 0 ELSE 1 END, name
		LIMIT ?`

	rows, err := r.executeQuery(ctx, "search", query, term, pattern, pattern, term, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, repositories.NewRepositoryError("search", "product", "", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, repositories.NewRepositoryError("search", "product", "", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Barcode,
		&p.Category,
		&p.Price,
		&p.TaxRate,
		&p.Unit,
		&p.IsActive,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
