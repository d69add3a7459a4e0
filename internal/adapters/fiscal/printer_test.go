package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestPrinter() *Printer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	p := NewPrinter(Options{Timeout: 2 * time.Second, Logger: logger})
	p.newID = func() string { return "doc-uuid-1" }
	return p
}

func configFor(t *testing.T, serverURL string, provider models.FiscalProvider) *models.FiscalConfig {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &models.FiscalConfig{
		Provider:         provider,
		IPAddress:        host,
		Port:             port,
		Username:         "cashier",
		Password:         "secret",
		OperatorCode:     "1",
		OperatorPassword: "0000",
		DefaultTaxRate:   d("18"),
		IsActive:         true,
	}
}

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func fiscalServer(t *testing.T, status int, response string, calls *int32, captured *capturedRequest) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			*captured = capturedRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: body}
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func decodeNumbers(t *testing.T, body []byte) map[string]any {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

func sampleSale() *models.Sale {
	return &models.Sale{
		BranchID: 1,
		Items: []models.SaleItem{
			{ProductID: 10, ProductName: "Bread", Barcode: "4760001", Quantity: d("2"), UnitPrice: d("5.00"), Discount: decimal.Zero},
			{ProductID: 11, ProductName: "Milk", Quantity: d("1"), UnitPrice: d("10.00"), Discount: decimal.Zero},
		},
		Payments: []models.SalePayment{
			{Method: models.PaymentMethodCash, Amount: d("15.00")},
			{Method: models.PaymentMethodGiftCard, Amount: d("5.00")},
		},
		Total:         d("20.00"),
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func TestPrinter_InitializeValidation(t *testing.T) {
	valid := func() *models.FiscalConfig {
		return &models.FiscalConfig{
			Provider:  "caspos",
			IPAddress: "192.168.1.50",
			Port:      5544,
			Username:  "u",
			Password:  "p",
			IsActive:  true,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *models.FiscalConfig)
		field  string
	}{
		{"inactive", func(c *models.FiscalConfig) { c.IsActive = false }, ""},
		{"missing ip", func(c *models.FiscalConfig) { c.IPAddress = "" }, "ip_address"},
		{"missing port", func(c *models.FiscalConfig) { c.Port = 0 }, "port"},
		{"unknown provider", func(c *models.FiscalConfig) { c.Provider = "epson" }, "provider"},
		{"caspos without username", func(c *models.FiscalConfig) { c.Username = "" }, "username"},
		{"caspos without password", func(c *models.FiscalConfig) { c.Password = "" }, "password"},
		{"datecs without operator code", func(c *models.FiscalConfig) { c.Provider = "datecs" }, "operator_code"},
		{"nba without operator password", func(c *models.FiscalConfig) {
			c.Provider = "nba"
			c.OperatorCode = "1"
		}, "operator_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			p := newTestPrinter()
			err := p.Initialize(cfg)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.False(t, p.IsInitialized())
		})
	}

	t.Run("nil config", func(t *testing.T) {
		assert.True(t, IsConfigError(newTestPrinter().Initialize(nil)))
	})

	t.Run("provider name is case insensitive", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = "CasPOS"

		p := newTestPrinter()
		require.NoError(t, p.Initialize(cfg))
		assert.True(t, p.IsInitialized())
		assert.Equal(t, models.FiscalProviderCaspos, p.Provider())
	})
}

func TestPrinter_NotInitialized(t *testing.T) {
	p := newTestPrinter()

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	assert.False(t, result.Success)
	assert.Equal(t, MsgNotInitialized, result.Error)

	conn := p.TestConnection(context.Background())
	assert.False(t, conn.Success)
	assert.Equal(t, MsgNotInitialized, conn.Error)
}

func TestPrinter_CasposReceipt(t *testing.T) {
	var captured capturedRequest
	server := fiscalServer(t, http.StatusOK,
		`{"code":0,"message":"ok","data":{"document_number":12345,"document_id":"abc-1"}}`, nil, &captured)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "caspos")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "12345", result.FiscalNumber)
	assert.Equal(t, "abc-1", result.FiscalDocumentID)
	assert.NotNil(t, result.ResponseData)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/", captured.path)

	body := decodeNumbers(t, captured.body)
	assert.Equal(t, "sale", body["operation"])
	assert.Equal(t, "cashier", body["username"])
	assert.Equal(t, "secret", body["password"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "doc-uuid-1", data["documentUUID"])
	assert.Equal(t, "15.00", data["cashPayment"])
	assert.Equal(t, "0.00", data["cardPayment"])

	items := data["items"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "Bread", first["itemName"])
	assert.Equal(t, "4760001", first["itemCode"])
	assert.Equal(t, "2.000", first["itemQuantity"])
	assert.Equal(t, "5.00", first["itemPrice"])
	assert.Equal(t, "2.50", first["discountAmount"])
	assert.Equal(t, "7.50", first["itemSum"])
	assert.Equal(t, "18.00", first["vatPercent"])

	second := items[1].(map[string]any)
	assert.Equal(t, "11", second["itemCode"])
	assert.Equal(t, "2.50", second["discountAmount"])
	assert.Equal(t, "7.50", second["itemSum"])
}

func TestPrinter_CasposPaymentBuckets(t *testing.T) {
	t.Run("credit sale without payments is cash", func(t *testing.T) {
		var captured capturedRequest
		server := fiscalServer(t, http.StatusOK, `{"code":0,"data":{"document_number":"1"}}`, nil, &captured)

		p := newTestPrinter()
		require.NoError(t, p.Initialize(configFor(t, server.URL, "caspos")))

		sale := sampleSale()
		sale.Payments = nil
		sale.PaymentStatus = models.PaymentStatusCredit

		require.True(t, p.PrintSaleReceipt(context.Background(), sale).Success)

		data := decodeNumbers(t, captured.body)["data"].(map[string]any)
		assert.Equal(t, "20.00", data["cashPayment"])
		assert.Equal(t, "0.00", data["cardPayment"])
	})

	t.Run("non cash tenders go to card", func(t *testing.T) {
		var captured capturedRequest
		server := fiscalServer(t, http.StatusOK, `{"code":0,"data":{"document_number":"1"}}`, nil, &captured)

		p := newTestPrinter()
		require.NoError(t, p.Initialize(configFor(t, server.URL, "caspos")))

		sale := sampleSale()
		sale.Payments = []models.SalePayment{
			{Method: models.PaymentMethodCash, Amount: d("5.00")},
			{Method: models.PaymentMethodCard, Amount: d("10.00")},
			{Method: models.PaymentMethodBankTransfer, Amount: d("5.00")},
		}

		require.True(t, p.PrintSaleReceipt(context.Background(), sale).Success)

		data := decodeNumbers(t, captured.body)["data"].(map[string]any)
		assert.Equal(t, "5.00", data["cashPayment"])
		assert.Equal(t, "15.00", data["cardPayment"])
	})
}

func TestPrinter_CasposRejected(t *testing.T) {
	server := fiscalServer(t, http.StatusOK, `{"code":5,"message":"shift is closed"}`, nil, nil)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "caspos")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	assert.False(t, result.Success)
	assert.Equal(t, "shift is closed", result.Error)
}

func TestPrinter_OmnitechReceipt(t *testing.T) {
	var captured capturedRequest
	server := fiscalServer(t, http.StatusOK, `{"code":0,"document_number":"77","short_id":"s-77"}`, nil, &captured)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "omnitech")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "77", result.FiscalNumber)
	assert.Equal(t, "s-77", result.FiscalDocumentID)

	assert.Equal(t, omnitechCheckPath, captured.path)
	req := &http.Request{Header: captured.header}
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "cashier", user)
	assert.Equal(t, "secret", pass)

	body := decodeNumbers(t, captured.body)
	requestData := body["requestData"].(map[string]any)
	checkData := requestData["checkData"].(map[string]any)
	assert.Equal(t, json.Number("1"), checkData["check_type"])
	assert.Equal(t, "15.00", checkData["total"])

	payments := requestData["payments"].([]any)
	require.Len(t, payments, 1)
	assert.Equal(t, "cash", payments[0].(map[string]any)["type"])

	products := requestData["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, "1.14", products[0].(map[string]any)["vat_amount"])
}

func TestPrinter_OmnitechPrefersLongID(t *testing.T) {
	server := fiscalServer(t, http.StatusOK, `{"code":0,"document_number":1,"long_id":"long","short_id":"short"}`, nil, nil)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "omnitech")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	require.True(t, result.Success)
	assert.Equal(t, "long", result.FiscalDocumentID)
}

func TestPrinter_OmnitechRejected(t *testing.T) {
	server := fiscalServer(t, http.StatusOK, `{"code":1,"message":"X"}`, nil, nil)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "omnitech")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	assert.False(t, result.Success)
	assert.Equal(t, "X", result.Error)
	assert.Empty(t, result.FiscalNumber)
}

func TestParseOmnitech(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		success    bool
		number     string
		documentID string
		errMsg     string
	}{
		{"rejected with message", `{"code":1,"message":"X"}`, false, "", "", "X"},
		{"rejected without message", `{"code":7}`, false, "", "", "fiscal printer returned code 7"},
		{"missing code", `{"message":"busy"}`, false, "", "", "busy"},
		{"numeric document number with long id", `{"code":0,"document_number":123,"long_id":"L"}`, true, "123", "L", ""},
		{"short id fallback", `{"code":0,"document_number":"9","short_id":"S"}`, true, "9", "S", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseOmnitech([]byte(tt.body))
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, tt.number, result.FiscalNumber)
			assert.Equal(t, tt.documentID, result.FiscalDocumentID)
			assert.Equal(t, tt.errMsg, result.Error)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		result := parseOmnitech([]byte(`not json`))
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "invalid response from fiscal printer")
	})
}

func TestLookupProvider(t *testing.T) {
	for _, provider := range models.FiscalProviders {
		got, spec, err := lookupProvider(models.FiscalProvider(strings.ToUpper(string(provider))))
		require.NoError(t, err, provider)
		assert.Equal(t, provider, got)
		assert.NotNil(t, spec.parse, provider)
	}

	_, _, err := lookupProvider("epson")
	assert.Error(t, err)
}

func TestPrinter_GenericReceipt(t *testing.T) {
	var captured capturedRequest
	server := fiscalServer(t, http.StatusOK, `{"success":true,"fiscal_number":"9","document_id":"d9"}`, nil, &captured)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "datecs")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "9", result.FiscalNumber)
	assert.Equal(t, "d9", result.FiscalDocumentID)
	assert.Equal(t, genericSalePath, captured.path)

	body := decodeNumbers(t, captured.body)
	operator := body["operator"].(map[string]any)
	assert.Equal(t, "1", operator["code"])
	document := body["document"].(map[string]any)
	assert.Equal(t, "doc-uuid-1", document["id"])
}

func TestPrinter_GenericCodeZeroIsSuccess(t *testing.T) {
	server := fiscalServer(t, http.StatusOK, `{"code":0,"document_number":"42"}`, nil, nil)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "azsmart")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	require.True(t, result.Success)
	assert.Equal(t, "42", result.FiscalNumber)
}

func TestPrinter_HTTPErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := fiscalServer(t, http.StatusInternalServerError, `{"message":"boom"}`, &calls, nil)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "caspos")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	assert.False(t, result.Success)
	assert.Equal(t, "HTTP 500", result.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPrinter_InvalidResponse(t *testing.T) {
	server := fiscalServer(t, http.StatusOK, `<html>not json</html>`, nil, nil)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "caspos")))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Error, "invalid response from fiscal printer"))
}

func TestPrinter_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := configFor(t, server.URL, "caspos")
	server.Close()

	p := newTestPrinter()
	require.NoError(t, p.Initialize(cfg))

	result := p.PrintSaleReceipt(context.Background(), sampleSale())
	assert.False(t, result.Success)
	assert.Equal(t, MsgUnreachable, result.Error)

	conn := p.TestConnection(context.Background())
	assert.False(t, conn.Success)
	assert.Equal(t, "caspos", conn.Provider)
	assert.Equal(t, MsgUnreachable, conn.Error)
}

func TestPrinter_TestConnection(t *testing.T) {
	var captured capturedRequest
	server := fiscalServer(t, http.StatusOK, `{"status":"ready"}`, nil, &captured)

	p := newTestPrinter()
	require.NoError(t, p.Initialize(configFor(t, server.URL, "oneclick")))

	conn := p.TestConnection(context.Background())
	assert.True(t, conn.Success)
	assert.Equal(t, "oneclick", conn.Provider)
	assert.Empty(t, conn.Error)
	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, genericStatusPath, captured.path)
}
