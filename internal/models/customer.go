package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a customer record mirrored from the backend
type Customer struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Phone         string          `json:"phone,omitempty" db:"phone"`
	Email         string          `json:"email,omitempty" db:"email"`
	CardNumber    string          `json:"card_number,omitempty" db:"card_number"`
	DiscountRate  decimal.Decimal `json:"discount_rate" db:"discount_rate"`
	CreditBalance decimal.Decimal `json:"credit_balance" db:"credit_balance"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// GetID returns the backend primary key
func (c Customer) GetID() int64 { return c.ID }

// GetDisplayName returns the name shown on the till
func (c Customer) GetDisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if c.Phone != "" {
		return c.Phone
	}
	return c.Email
}
