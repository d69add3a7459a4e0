package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// ErrNoFiscalConfig is returned when no fiscal printer config has been synced
var ErrNoFiscalConfig = errors.New("no fiscal config available")

// FiscalService prints receipts with the most recently synced printer config
type FiscalService struct {
	store    repositories.FiscalConfigRepository
	printer  FiscalPrinter
	recorder Recorder
	logger   *logrus.Logger
}

// NewFiscalService creates a new fiscal service
func NewFiscalService(store repositories.FiscalConfigRepository, printer FiscalPrinter, logger *logrus.Logger) *FiscalService {
	if logger == nil {
		logger = logrus.New()
	}
	return &FiscalService{
		store:    store,
		printer:  printer,
		recorder: nopRecorder{},
		logger:   logger,
	}
}

// WithRecorder reports fiscal print outcomes to r
func (s *FiscalService) WithRecorder(r Recorder) *FiscalService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// loadPrinter reinitializes the printer from storage so config syncs take
// effect on the next call. A nil or inactive config means fiscalization is
// off and leaves the printer untouched.
func (s *FiscalService) loadPrinter(ctx context.Context) (*models.FiscalConfig, error) {
	cfg, err := s.store.GetFiscalConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fiscal config: %w", err)
	}
	if cfg == nil || !cfg.IsActive {
		return cfg, nil
	}
	if err := s.printer.Initialize(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PrintForSale fiscalizes sale when an active config exists. It returns a
// nil result when fiscalization is not configured.
func (s *FiscalService) PrintForSale(ctx context.Context, sale *models.Sale) (*models.FiscalResult, error) {
	cfg, err := s.loadPrinter(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.IsActive {
		return nil, nil
	}

	result := s.printer.PrintSaleReceipt(ctx, sale)
	s.recorder.RecordFiscalPrint(string(s.printer.Provider()), result.Success)
	return result, nil
}

// TestConnection probes the configured printer
func (s *FiscalService) TestConnection(ctx context.Context) (*models.FiscalConnectionResult, error) {
	cfg, err := s.loadPrinter(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.IsActive {
		return nil, ErrNoFiscalConfig
	}
	return s.printer.TestConnection(ctx), nil
}
