package fiscal

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rbutdayev/xpos-sub008/internal/models"
)

// payload is a provider request ready to be sent to the device
type payload struct {
	method  string
	path    string
	headers map[string]string
	body    interface{}
}

type providerSpec struct {
	// required lists config fields that must be non-empty for this provider
	required func(cfg *models.FiscalConfig) map[string]string
	format   func(cfg *models.FiscalConfig, sale *models.Sale, documentID string) payload
	parse    func(body []byte) *models.FiscalResult
	probe    func(cfg *models.FiscalConfig) payload
}

var providers = map[models.FiscalProvider]providerSpec{
	models.FiscalProviderCaspos: {
		required: credentialFields,
		format:   formatCaspos,
		parse:    parseCaspos,
		probe:    probeCaspos,
	},
	models.FiscalProviderOmnitech: {
		required: credentialFields,
		format:   formatOmnitech,
		parse:    parseOmnitech,
		probe:    probeOmnitech,
	},
	models.FiscalProviderDatecs:   genericProvider,
	models.FiscalProviderNBA:      genericProvider,
	models.FiscalProviderOneClick: genericProvider,
	models.FiscalProviderAzSmart:  genericProvider,
}

var genericProvider = providerSpec{
	required: operatorFields,
	format:   formatGeneric,
	parse:    parseGeneric,
	probe:    probeGeneric,
}

func credentialFields(cfg *models.FiscalConfig) map[string]string {
	return map[string]string{"username": cfg.Username, "password": cfg.Password}
}

func operatorFields(cfg *models.FiscalConfig) map[string]string {
	return map[string]string{"operator_code": cfg.OperatorCode, "operator_password": cfg.OperatorPassword}
}

func lookupProvider(name models.FiscalProvider) (models.FiscalProvider, providerSpec, error) {
	p, err := models.ParseFiscalProvider(string(name))
	if err != nil {
		return "", providerSpec{}, err
	}
	spec, ok := providers[p]
	if !ok {
		return "", providerSpec{}, fmt.Errorf("no protocol registered for fiscal provider %q", p)
	}
	return p, spec, nil
}

// itemCode prefers the barcode and falls back to the product id
func itemCode(item models.SaleItem) string {
	if item.Barcode != "" {
		return item.Barcode
	}
	return strconv.FormatInt(item.ProductID, 10)
}

func itemName(item models.SaleItem) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	return "Product " + strconv.FormatInt(item.ProductID, 10)
}

func post(path string, body interface{}) payload {
	return payload{method: http.MethodPost, path: path, body: body}
}
