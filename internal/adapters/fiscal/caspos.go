package fiscal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rbutdayev/xpos-sub008/internal/models"
)

type casposRequest struct {
	Operation string      `json:"operation"`
	Username  string      `json:"username"`
	Password  string      `json:"password"`
	Data      *casposData `json:"data,omitempty"`
}

type casposData struct {
	DocumentUUID string       `json:"documentUUID"`
	CashPayment  money        `json:"cashPayment"`
	CardPayment  money        `json:"cardPayment"`
	Items        []casposItem `json:"items"`
}

type casposItem struct {
	ItemName       string   `json:"itemName"`
	ItemCode       string   `json:"itemCode"`
	ItemQuantity   quantity `json:"itemQuantity"`
	ItemPrice      money    `json:"itemPrice"`
	ItemSum        money    `json:"itemSum"`
	DiscountAmount money    `json:"discountAmount"`
	VatPercent     money    `json:"vatPercent"`
}

func formatCaspos(cfg *models.FiscalConfig, sale *models.Sale, documentID string) payload {
	buckets := bucketPayments(sale)
	lines := applyGiftCardDiscount(sale.Items, buckets.giftCard)

	items := make([]casposItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, casposItem{
			ItemName:       itemName(l.item),
			ItemCode:       itemCode(l.item),
			ItemQuantity:   quantity(l.item.Quantity),
			ItemPrice:      money(l.item.UnitPrice),
			ItemSum:        money(l.sum),
			DiscountAmount: money(l.discount),
			VatPercent:     money(cfg.DefaultTaxRate),
		})
	}

	return post("/", casposRequest{
		Operation: "sale",
		Username:  cfg.Username,
		Password:  cfg.Password,
		Data: &casposData{
			DocumentUUID: documentID,
			CashPayment:  money(buckets.cash),
			CardPayment:  money(buckets.card),
			Items:        items,
		},
	})
}

func probeCaspos(cfg *models.FiscalConfig) payload {
	return post("/", casposRequest{
		Operation: "getInfo",
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(data)))
	return nil
}

type casposResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Data    struct {
		DocumentNumber flexString `json:"document_number"`
		DocumentID     flexString `json:"document_id"`
	} `json:"data"`
}

func parseCaspos(body []byte) *models.FiscalResult {
	var resp casposResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return invalidResponse(err)
	}

	result := &models.FiscalResult{ResponseData: rawData(body)}
	if resp.Code == nil || *resp.Code != 0 {
		result.Error = providerError(resp.Message, resp.Code)
		return result
	}

	result.Success = true
	result.FiscalNumber = string(resp.Data.DocumentNumber)
	result.FiscalDocumentID = string(resp.Data.DocumentID)
	return result
}

func providerError(message string, code *int) string {
	if message != "" {
		return message
	}
	if code != nil {
		return fmt.Sprintf("fiscal printer returned code %d", *code)
	}
	return "fiscal printer rejected the document"
}

func invalidResponse(err error) *models.FiscalResult {
	return &models.FiscalResult{Error: fmt.Sprintf("invalid response from fiscal printer: %v", err)}
}

// rawData keeps the decoded device response for diagnostics
func rawData(body []byte) map[string]any {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}
	return data
}
