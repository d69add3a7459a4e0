package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue entry mirrored from the backend
type Product struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	SKU       string          `json:"sku,omitempty" db:"sku"`
	Barcode   string          `json:"barcode,omitempty" db:"barcode"`
	Category  string          `json:"category,omitempty" db:"category"`
	Price     decimal.Decimal `json:"price" db:"price"`
	TaxRate   decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Unit      string          `json:"unit,omitempty" db:"unit"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// GetID returns the backend primary key
func (p Product) GetID() int64 { return p.ID }
