// Package fiscal translates kiosk sales into fiscal printer protocols.
package fiscal

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single request to the fiscal device
const DefaultTimeout = 15 * time.Second

// Options configures a Printer
type Options struct {
	Timeout   time.Duration
	Logger    *logrus.Logger
	Transport http.RoundTripper
}

// Printer sends sales to the branch's fiscal device
type Printer struct {
	mu       sync.RWMutex
	cfg      *models.FiscalConfig
	provider models.FiscalProvider
	spec     providerSpec
	client   *backend.Client

	timeout   time.Duration
	transport http.RoundTripper
	logger    *logrus.Logger
	validate  *validator.Validate
	newID     func() string
}

// NewPrinter creates an uninitialized printer
func NewPrinter(opts Options) *Printer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Printer{
		timeout:   opts.Timeout,
		transport: opts.Transport,
		logger:    opts.Logger,
		validate:  validate,
		newID:     func() string { return uuid.New().String() },
	}
}

// Initialize validates cfg and selects the provider protocol
func (p *Printer) Initialize(cfg *models.FiscalConfig) error {
	if cfg == nil {
		return &ConfigError{Reason: "no fiscal configuration"}
	}
	if !cfg.IsActive {
		return &ConfigError{Reason: "fiscal printer is not active"}
	}

	if err := p.validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return &ConfigError{Field: verrs[0].Field(), Reason: "is missing or invalid"}
		}
		return &ConfigError{Reason: err.Error()}
	}

	provider, spec, err := lookupProvider(cfg.Provider)
	if err != nil {
		return &ConfigError{Field: "provider", Reason: "is not supported: " + string(cfg.Provider)}
	}

	for _, field := range requiredOrder {
		value, needed := spec.required(cfg)[field]
		if needed && value == "" {
			return &ConfigError{Field: field, Reason: "is required for " + string(provider)}
		}
	}

	client, err := backend.NewClient(&backend.Config{
		BaseURL:   cfg.BaseURL(),
		Timeout:   p.timeout,
		UserAgent: "kiosk-fiscal/1.0",
		Retry:     backend.RetryConfig{MaxAttempts: 0},
		Logger:    p.logger,
		Transport: p.transport,
	})
	if err != nil {
		return &ConfigError{Field: "ip_address", Reason: err.Error()}
	}

	cfgCopy := *cfg

	p.mu.Lock()
	p.cfg = &cfgCopy
	p.provider = provider
	p.spec = spec
	p.client = client
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"provider": provider,
		"address":  cfg.BaseURL(),
	}).Info("Fiscal printer initialized")
	return nil
}

var requiredOrder = []string{"username", "password", "operator_code", "operator_password"}

// IsInitialized reports whether Initialize succeeded
func (p *Printer) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}

// Provider returns the active provider, empty before Initialize
func (p *Printer) Provider() models.FiscalProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.provider
}

func (p *Printer) snapshot() (*models.FiscalConfig, models.FiscalProvider, providerSpec, *backend.Client) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.provider, p.spec, p.client
}

// PrintSaleReceipt formats sale for the provider and sends it once.
// Failures are reported in the result, never retried.
func (p *Printer) PrintSaleReceipt(ctx context.Context, sale *models.Sale) *models.FiscalResult {
	cfg, provider, spec, client := p.snapshot()
	if client == nil {
		return &models.FiscalResult{Error: MsgNotInitialized}
	}
	if sale == nil || len(sale.Items) == 0 {
		return &models.FiscalResult{Error: "sale has no items"}
	}

	documentID := p.newID()
	req := spec.format(cfg, sale, documentID)

	log := p.logger.WithFields(logrus.Fields{
		"provider":    provider,
		"document_id": documentID,
		"items":       len(sale.Items),
	})
	log.Info("Printing fiscal receipt")

	resp, err := client.Do(ctx, backend.Request{
		Method:       req.method,
		Path:         req.path,
		Headers:      req.headers,
		Body:         req.body,
		DisableRetry: true,
	})
	if err != nil {
		msg := normalizeError(err)
		log.WithError(err).WithField("reason", msg).Error("Fiscal print failed")
		return &models.FiscalResult{Error: msg}
	}

	result := spec.parse(resp.Body)
	if result.Success {
		log.WithField("fiscal_number", result.FiscalNumber).Info("Fiscal receipt printed")
	} else {
		log.WithField("reason", result.Error).Warn("Fiscal printer rejected receipt")
	}
	return result
}

// TestConnection runs the provider's lightweight probe
func (p *Printer) TestConnection(ctx context.Context) *models.FiscalConnectionResult {
	cfg, provider, spec, client := p.snapshot()
	if client == nil {
		return &models.FiscalConnectionResult{Error: MsgNotInitialized}
	}

	req := spec.probe(cfg)
	start := time.Now()
	_, err := client.Do(ctx, backend.Request{
		Method:       req.method,
		Path:         req.path,
		Headers:      req.headers,
		Body:         req.body,
		DisableRetry: true,
	})

	result := &models.FiscalConnectionResult{
		Success:   err == nil,
		Provider:  string(provider),
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = normalizeError(err)
	}

	p.logger.WithFields(logrus.Fields{
		"provider":   provider,
		"success":    result.Success,
		"elapsed_ms": result.ElapsedMs,
	}).Info("Fiscal connection test finished")
	return result
}
