package fiscal

import (
	"encoding/json"
	"net/http"

	"github.com/rbutdayev/xpos-sub008/internal/models"
)

const (
	genericSalePath   = "/api/sale"
	genericStatusPath = "/api/status"
)

type genericRequest struct {
	Operation string           `json:"operation"`
	Operator  genericOperator  `json:"operator"`
	Document  *genericDocument `json:"document,omitempty"`
}

type genericOperator struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type genericDocument struct {
	ID       string           `json:"id"`
	Items    []genericItem    `json:"items"`
	Payments []genericPayment `json:"payments"`
	Total    money            `json:"total"`
}

type genericItem struct {
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	Quantity  quantity `json:"quantity"`
	Price     money    `json:"price"`
	Discount  money    `json:"discount"`
	Sum       money    `json:"sum"`
	VatRate   money    `json:"vat_rate"`
	VatAmount money    `json:"vat_amount"`
}

type genericPayment struct {
	Method string `json:"method"`
	Amount money  `json:"amount"`
}

func formatGeneric(cfg *models.FiscalConfig, sale *models.Sale, documentID string) payload {
	buckets := bucketPayments(sale)
	lines := applyGiftCardDiscount(sale.Items, buckets.giftCard)

	items := make([]genericItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, genericItem{
			Name:      itemName(l.item),
			Code:      itemCode(l.item),
			Quantity:  quantity(l.item.Quantity),
			Price:     money(l.item.UnitPrice),
			Discount:  money(l.discount),
			Sum:       money(l.sum),
			VatRate:   money(cfg.DefaultTaxRate),
			VatAmount: money(inclusiveVAT(l.sum, cfg.DefaultTaxRate)),
		})
	}

	payments := make([]genericPayment, 0, len(buckets.tenders))
	for _, p := range buckets.tenders {
		payments = append(payments, genericPayment{Method: string(p.Method), Amount: money(p.Amount)})
	}

	return post(genericSalePath, genericRequest{
		Operation: "sale",
		Operator:  genericOperator{Code: cfg.OperatorCode, Password: cfg.OperatorPassword},
		Document: &genericDocument{
			ID:       documentID,
			Items:    items,
			Payments: payments,
			Total:    money(fiscalTotal(lines)),
		},
	})
}

func probeGeneric(cfg *models.FiscalConfig) payload {
	return payload{method: http.MethodGet, path: genericStatusPath}
}

type genericResponse struct {
	Success        bool       `json:"success"`
	Code           *int       `json:"code"`
	Message        string     `json:"message"`
	Error          string     `json:"error"`
	FiscalNumber   flexString `json:"fiscal_number"`
	DocumentNumber flexString `json:"document_number"`
	DocumentID     flexString `json:"document_id"`
}

func parseGeneric(body []byte) *models.FiscalResult {
	var resp genericResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return invalidResponse(err)
	}

	result := &models.FiscalResult{ResponseData: rawData(body)}
	if !resp.Success && (resp.Code == nil || *resp.Code != 0) {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		result.Error = providerError(msg, resp.Code)
		return result
	}

	result.Success = true
	result.FiscalNumber = string(resp.FiscalNumber)
	if result.FiscalNumber == "" {
		result.FiscalNumber = string(resp.DocumentNumber)
	}
	result.FiscalDocumentID = string(resp.DocumentID)
	return result
}
