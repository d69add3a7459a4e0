package fiscal

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/rbutdayev/xpos-sub008/internal/models"
)

const (
	omnitechCheckPath  = "/api/v2/check"
	omnitechStatusPath = "/api/v2/status"

	omnitechCheckTypeSale = 1
)

type omnitechRequest struct {
	RequestData omnitechRequestData `json:"requestData"`
}

type omnitechRequestData struct {
	CheckData omnitechCheckData `json:"checkData"`
	Products  []omnitechProduct `json:"products"`
	Payments  []omnitechPayment `json:"payments"`
}

type omnitechCheckData struct {
	CheckType    int    `json:"check_type"`
	DocumentUUID string `json:"document_uuid"`
	Total        money  `json:"total"`
	Cashier      string `json:"cashier"`
}

type omnitechProduct struct {
	Name       string   `json:"name"`
	Code       string   `json:"code"`
	Quantity   quantity `json:"quantity"`
	Price      money    `json:"price"`
	Sum        money    `json:"sum"`
	Discount   money    `json:"discount"`
	VatPercent money    `json:"vat_percent"`
	VatAmount  money    `json:"vat_amount"`
}

type omnitechPayment struct {
	Type   string `json:"type"`
	Amount money  `json:"amount"`
}

func formatOmnitech(cfg *models.FiscalConfig, sale *models.Sale, documentID string) payload {
	buckets := bucketPayments(sale)
	lines := applyGiftCardDiscount(sale.Items, buckets.giftCard)

	products := make([]omnitechProduct, 0, len(lines))
	for _, l := range lines {
		products = append(products, omnitechProduct{
			Name:       itemName(l.item),
			Code:       itemCode(l.item),
			Quantity:   quantity(l.item.Quantity),
			Price:      money(l.item.UnitPrice),
			Sum:        money(l.sum),
			Discount:   money(l.discount),
			VatPercent: money(cfg.DefaultTaxRate),
			VatAmount:  money(inclusiveVAT(l.sum, cfg.DefaultTaxRate)),
		})
	}

	payments := make([]omnitechPayment, 0, len(buckets.tenders))
	for _, p := range buckets.tenders {
		kind := "card"
		if p.Method == models.PaymentMethodCash {
			kind = "cash"
		}
		payments = append(payments, omnitechPayment{Type: kind, Amount: money(p.Amount)})
	}

	req := post(omnitechCheckPath, omnitechRequest{
		RequestData: omnitechRequestData{
			CheckData: omnitechCheckData{
				CheckType:    omnitechCheckTypeSale,
				DocumentUUID: documentID,
				Total:        money(fiscalTotal(lines)),
				Cashier:      cfg.Username,
			},
			Products: products,
			Payments: payments,
		},
	})
	req.headers = basicAuth(cfg)
	return req
}

func probeOmnitech(cfg *models.FiscalConfig) payload {
	return payload{
		method:  http.MethodGet,
		path:    omnitechStatusPath,
		headers: basicAuth(cfg),
	}
}

func basicAuth(cfg *models.FiscalConfig) map[string]string {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return map[string]string{"Authorization": "Basic " + creds}
}

type omnitechResponse struct {
	Code           *int       `json:"code"`
	Message        string     `json:"message"`
	DocumentNumber flexString `json:"document_number"`
	LongID         flexString `json:"long_id"`
	ShortID        flexString `json:"short_id"`
}

func parseOmnitech(body []byte) *models.FiscalResult {
	var resp omnitechResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return invalidResponse(err)
	}

	result := &models.FiscalResult{ResponseData: rawData(body)}
	if resp.Code == nil || *resp.Code != 0 {
		result.Error = providerError(resp.Message, resp.Code)
		return result
	}

	result.Success = true
	result.FiscalNumber = string(resp.DocumentNumber)
	result.FiscalDocumentID = string(resp.LongID)
	if result.FiscalDocumentID == "" {
		result.FiscalDocumentID = string(resp.ShortID)
	}
	return result
}
