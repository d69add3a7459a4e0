package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"
)

// Backend endpoint paths, relative to the base URL
const (
	PathRegister        = "/register"
	PathHeartbeat       = "/heartbeat"
	PathProductsDelta   = "/sync/products/delta"
	PathCustomersDelta  = "/sync/customers/delta"
	PathUsers           = "/sync/users"
	PathFiscalConfig    = "/fiscal-config"
	PathSalesUpload     = "/sales/upload"
	PathSale            = "/sale"
	PathSaleStatus      = "/sales/status/"
	PathProductsSearch  = "/products/search"
	PathCustomersSearch = "/customers/search"
	PathDisconnect      = "/disconnect"
)

// RegisterRequest identifies the device to the backend
type RegisterRequest struct {
	DeviceID         string `json:"device_id" validate:"required"`
	DeviceName       string `json:"device_name,omitempty"`
	BranchID         int64  `json:"branch_id,omitempty"`
	AppVersion       string `json:"app_version,omitempty"`
	RegistrationCode string `json:"registration_code,omitempty"`
}

// RegisterResponse carries the device token and the server's sync configuration
type RegisterResponse struct {
	Token      string             `json:"token"`
	DeviceID   string             `json:"device_id"`
	BranchID   int64              `json:"branch_id"`
	SyncConfig *models.SyncConfig `json:"sync_config,omitempty"`
}

// UploadSale is one queued sale in an upload batch
type UploadSale struct {
	LocalID int64 `json:"local_id"`
	models.Sale
}

// CreateSaleResponse is the backend's answer to a single sale upload
type CreateSaleResponse struct {
	SaleID int64 `json:"sale_id"`
}

// Register announces the device and stores the returned token on the client
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	resp, err := c.Post(ctx, PathRegister, req)
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("register response did not include a token")
	}

	c.SetToken(out.Token)
	return &out, nil
}

// Heartbeat probes connectivity with a short timeout and no retries
func (c *Client) Heartbeat(ctx context.Context) bool {
	_, err := c.Do(ctx, Request{
		Method:       http.MethodGet,
		Path:         PathHeartbeat,
		Timeout:      HeartbeatTimeout,
		DisableRetry: true,
	})
	return err == nil
}

// GetProductsDelta returns products changed since the watermark; nil means full sync
func (c *Client) GetProductsDelta(ctx context.Context, since *time.Time) (*models.Delta[models.Product], error) {
	var delta models.Delta[models.Product]
	if err := c.getJSON(ctx, PathProductsDelta, sinceQuery(since), &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// GetCustomersDelta returns customers changed since the watermark
func (c *Client) GetCustomersDelta(ctx context.Context, since *time.Time) (*models.Delta[models.Customer], error) {
	var delta models.Delta[models.Customer]
	if err := c.getJSON(ctx, PathCustomersDelta, sinceQuery(since), &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// GetUsersDelta returns users for offline login, changed since the watermark
func (c *Client) GetUsersDelta(ctx context.Context, since *time.Time) (*models.Delta[models.User], error) {
	var delta models.Delta[models.User]
	if err := c.getJSON(ctx, PathUsers, sinceQuery(since), &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// GetFiscalConfig returns the branch fiscal configuration, or nil when the body is empty
func (c *Client) GetFiscalConfig(ctx context.Context) (*models.FiscalConfig, error) {
	resp, err := c.Get(ctx, PathFiscalConfig, nil)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var cfg models.FiscalConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode fiscal config: %w", err)
	}
	if cfg.Provider == "" {
		return nil, nil
	}
	return &cfg, nil
}

// UploadSales sends queued sales as one batch
func (c *Client) UploadSales(ctx context.Context, sales []*models.QueuedSale) (*models.UploadSalesResult, error) {
	batch := make([]UploadSale, 0, len(sales))
	for _, s := range sales {
		batch = append(batch, UploadSale{LocalID: s.LocalID, Sale: s.Sale})
	}

	resp, err := c.Post(ctx, PathSalesUpload, map[string]interface{}{"sales": batch})
	if err != nil {
		return nil, err
	}

	var out models.UploadSalesResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSale uploads a single sale immediately
func (c *Client) CreateSale(ctx context.Context, localID int64, sale *models.Sale) (*CreateSaleResponse, error) {
	resp, err := c.Post(ctx, PathSale, UploadSale{LocalID: localID, Sale: *sale})
	if err != nil {
		return nil, err
	}

	var out CreateSaleResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.SaleID == 0 {
		return nil, fmt.Errorf("create sale response did not include a sale id")
	}
	return &out, nil
}

// GetSaleStatus returns the backend status of an uploaded sale
func (c *Client) GetSaleStatus(ctx context.Context, saleID int64) (*models.SaleStatus, error) {
	var status models.SaleStatus
	if err := c.getJSON(ctx, PathSaleStatus+strconv.FormatInt(saleID, 10), nil, &status); err != nil {
		return nil, err
	}
	if status.SaleID == 0 {
		status.SaleID = saleID
	}
	return &status, nil
}

// SearchProducts searches the backend product catalog
func (c *Client) SearchProducts(ctx context.Context, term string, limit int) ([]*models.Product, error) {
	var list searchResult[*models.Product]
	if err := c.getJSON(ctx, PathProductsSearch, searchQuery(term, limit), &list); err != nil {
		return nil, err
	}
	return list.items, nil
}

// SearchCustomers searches backend customers
func (c *Client) SearchCustomers(ctx context.Context, term string, limit int) ([]*models.Customer, error) {
	var list searchResult[*models.Customer]
	if err := c.getJSON(ctx, PathCustomersSearch, searchQuery(term, limit), &list); err != nil {
		return nil, err
	}
	return list.items, nil
}

// Disconnect tells the backend this device is going away
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: PathDisconnect, DisableRetry: true})
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

func sinceQuery(since *time.Time) url.Values {
	if since == nil || since.IsZero() {
		return nil
	}
	return url.Values{"since": []string{since.UTC().Format(time.RFC3339Nano)}}
}

func searchQuery(term string, limit int) url.Values {
	q := url.Values{"q": []string{term}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// searchResult accepts either a bare array or an object with the list under
// "items", "products" or "customers".
type searchResult[T any] struct {
	items []T
}

func (r *searchResult[T]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.items); err == nil {
		return nil
	}

	var obj struct {
		Items     []T `json:"items"`
		Products  []T `json:"products"`
		Customers []T `json:"customers"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	switch {
	case obj.Items != nil:
		r.items = obj.Items
	case obj.Products != nil:
		r.items = obj.Products
	default:
		r.items = obj.Customers
	}
	return nil
}
