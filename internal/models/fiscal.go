package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FiscalProvider identifies a fiscal printer vendor protocol
type FiscalProvider string

const (
	FiscalProviderCaspos   FiscalProvider = "caspos"
	FiscalProviderDatecs   FiscalProvider = "datecs"
	FiscalProviderOmnitech FiscalProvider = "omnitech"
	FiscalProviderNBA      FiscalProvider = "nba"
	FiscalProviderOneClick FiscalProvider = "oneclick"
	FiscalProviderAzSmart  FiscalProvider = "azsmart"
)

// FiscalProviders lists every supported provider
var FiscalProviders = []FiscalProvider{
	FiscalProviderCaspos,
	FiscalProviderDatecs,
	FiscalProviderOmnitech,
	FiscalProviderNBA,
	FiscalProviderOneClick,
	FiscalProviderAzSmart,
}

// ParseFiscalProvider resolves a provider name case-insensitively
func ParseFiscalProvider(name string) (FiscalProvider, error) {
	p := FiscalProvider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range FiscalProviders {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported fiscal provider: %q", name)
}

// FiscalConfig describes how to reach the branch's fiscal printer
type FiscalConfig struct {
	Provider         FiscalProvider  `json:"provider" validate:"required"`
	IPAddress        string          `json:"ip_address" validate:"required"`
	Port             int             `json:"port" validate:"required,gt=0,lte=65535"`
	OperatorCode     string          `json:"operator_code,omitempty"`
	OperatorPassword string          `json:"operator_password,omitempty"`
	Username         string          `json:"username,omitempty"`
	Password         string          `json:"password,omitempty"`
	DefaultTaxRate   decimal.Decimal `json:"default_tax_rate"`
	IsActive         bool            `json:"is_active"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BaseURL returns the device address as an http URL
func (c *FiscalConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.IPAddress, c.Port)
}

// FiscalResult is the normalized outcome of a fiscal print
type FiscalResult struct {
	Success          bool           `json:"success"`
	FiscalNumber     string         `json:"fiscalNumber,omitempty"`
	FiscalDocumentID string         `json:"fiscalDocumentId,omitempty"`
	Error            string         `json:"error,omitempty"`
	ResponseData     map[string]any `json:"responseData,omitempty"`
}

// FiscalConnectionResult is the outcome of a fiscal connectivity probe
type FiscalConnectionResult struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}
