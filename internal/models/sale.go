package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents how a sale was settled at the till
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusCredit  PaymentStatus = "credit"
	PaymentStatusPartial PaymentStatus = "partial"
)

// PaymentMethod represents a tender type
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodGiftCard     PaymentMethod = "gift_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// SyncStatus represents the upload state of a queued sale
type SyncStatus string

const (
	SyncStatusQueued  SyncStatus = "queued"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// SaleItem is a single line of a sale
type SaleItem struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

// LineTotal returns quantity * unit price minus the line discount
func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Sub(i.Discount)
}

// SalePayment is one tender applied to a sale
type SalePayment struct {
	Method PaymentMethod   `json:"method" validate:"required,oneof=cash card gift_card bank_transfer"`
	Amount decimal.Decimal `json:"amount"`
}

// Sale represents a sale recorded at the kiosk
type Sale struct {
	BranchID         int64           `json:"branch_id" validate:"required,gt=0"`
	CustomerID       *int64          `json:"customer_id,omitempty"`
	UserID           *int64          `json:"user_id,omitempty"`
	Items            []SaleItem      `json:"items" validate:"required,min=1,dive"`
	Payments         []SalePayment   `json:"payments" validate:"dive"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	PaymentStatus    PaymentStatus   `json:"payment_status" validate:"required,oneof=paid credit partial"`
	Notes            string          `json:"notes,omitempty"`
	FiscalNumber     string          `json:"fiscal_number,omitempty"`
	FiscalDocumentID string          `json:"fiscal_document_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Validate checks the monetary invariants that struct tags cannot express
func (s *Sale) Validate() error {
	if s.Total.IsNegative() {
		return fmt.Errorf("sale total cannot be negative")
	}

	for i, item := range s.Items {
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: unit price cannot be negative", i)
		}
		if item.Discount.IsNegative() {
			return fmt.Errorf("item %d: discount cannot be negative", i)
		}
	}

	for i, p := range s.Payments {
		if p.Amount.IsNegative() {
			return fmt.Errorf("payment %d: amount cannot be negative", i)
		}
	}

	if s.PaymentStatus == PaymentStatusPaid && len(s.Payments) > 0 && s.PaidAmount().LessThan(s.Total) {
		return fmt.Errorf("paid sale has payments totalling %s, less than total %s",
			s.PaidAmount().StringFixed(2), s.Total.StringFixed(2))
	}

	return nil
}

// PaidAmount sums all payments regardless of method
func (s *Sale) PaidAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range s.Payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// QueuedSale is a sale waiting for backend acknowledgement
type QueuedSale struct {
	LocalID      int64      `json:"local_id"`
	RetryCount   int        `json:"retry_count"`
	SyncStatus   SyncStatus `json:"sync_status"`
	ServerSaleID *int64     `json:"server_sale_id,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Sale
	UpdatedAt time.Time `json:"updated_at"`
}

// Uploadable reports whether the sale is still eligible for an upload batch
func (q *QueuedSale) Uploadable(maxRetryAttempts int) bool {
	return q.SyncStatus != SyncStatusSynced && q.RetryCount < maxRetryAttempts
}

// SaleUploadResult pairs a local sale with the id the backend assigned to it
type SaleUploadResult struct {
	LocalID      int64 `json:"local_id"`
	ServerSaleID int64 `json:"server_sale_id"`
}

// SaleUploadFailure reports a sale the backend rejected inside a batch
type SaleUploadFailure struct {
	LocalID int64  `json:"local_id"`
	Error   string `json:"error"`
}

// UploadSalesResult is the backend's answer to a batch upload
type UploadSalesResult struct {
	Results []SaleUploadResult  `json:"results"`
	Failed  []SaleUploadFailure `json:"failed"`
}

// SaleStatus is the backend's view of an uploaded sale
type SaleStatus struct {
	SaleID    int64     `json:"sale_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
