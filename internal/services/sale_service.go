package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ErrFiscalFailed is returned when the fiscal printer refused a sale
var ErrFiscalFailed = errors.New("fiscal receipt failed")

// ErrInvalidSale is returned when a sale fails validation
var ErrInvalidSale = errors.New("invalid sale")

// RecordSaleResult is the outcome of recording a sale at the till
type RecordSaleResult struct {
	Sale   *models.QueuedSale   `json:"sale"`
	Fiscal *models.FiscalResult `json:"fiscal,omitempty"`
	Synced bool                 `json:"synced"`
}

// SaleStatusResult pairs the local queue row with the backend's view
type SaleStatusResult struct {
	Sale   *models.QueuedSale `json:"sale"`
	Remote *models.SaleStatus `json:"remote,omitempty"`
}

// SaleService records sales locally and pushes them to the backend when it can
type SaleService struct {
	queue     repositories.SaleQueueRepository
	api       SaleAPI
	conn      Connectivity
	fiscal    *FiscalService
	validator *validator.Validate
	logger    *logrus.Logger
}

// NewSaleService creates a new sale service. fiscal may be nil.
func NewSaleService(queue repositories.SaleQueueRepository, api SaleAPI, conn Connectivity, fiscal *FiscalService, logger *logrus.Logger) *SaleService {
	if logger == nil {
		logger = logrus.New()
	}
	return &SaleService{
		queue:     queue,
		api:       api,
		conn:      conn,
		fiscal:    fiscal,
		validator: validator.New(),
		logger:    logger,
	}
}

// RecordSale validates, fiscalizes and queues a sale. When online it also
// tries the single-sale upload; a failure there leaves the sale queued.
func (s *SaleService) RecordSale(ctx context.Context, sale *models.Sale) (*RecordSaleResult, error) {
	if sale == nil {
		return nil, fmt.Errorf("%w: sale cannot be nil", ErrInvalidSale)
	}
	if err := s.validator.Struct(sale); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSale, err)
	}
	if err := sale.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSale, err)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	result := &RecordSaleResult{}

	if s.fiscal != nil {
		fiscal, err := s.fiscal.PrintForSale(ctx, sale)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFiscalFailed, err)
		}
		if fiscal != nil {
			result.Fiscal = fiscal
			if !fiscal.Success {
				return result, fmt.Errorf("%w: %s", ErrFiscalFailed, fiscal.Error)
			}
			sale.FiscalNumber = fiscal.FiscalNumber
			sale.FiscalDocumentID = fiscal.FiscalDocumentID
		}
	}

	queued, err := s.queue.QueueSale(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("failed to queue sale: %w", err)
	}
	result.Sale = queued

	log := s.logger.WithFields(logrus.Fields{
		"local_id":      queued.LocalID,
		"total":         sale.Total.StringFixed(2),
		"fiscal_number": sale.FiscalNumber,
	})

	if !s.conn.IsOnline() {
		log.Info("Sale queued while offline")
		return result, nil
	}

	resp, err := s.api.CreateSale(ctx, queued.LocalID, &queued.Sale)
	if err != nil {
		log.WithError(err).Warn("Direct sale upload failed, sale stays queued")
		return result, nil
	}

	if err := s.queue.MarkSaleAsSynced(ctx, queued.LocalID, resp.SaleID); err != nil {
		log.WithError(err).Error("Failed to mark uploaded sale as synced")
		return result, nil
	}

	serverID := resp.SaleID
	queued.SyncStatus = models.SyncStatusSynced
	queued.ServerSaleID = &serverID
	result.Synced = true

	log.WithField("server_sale_id", serverID).Info("Sale uploaded")
	return result, nil
}

// GetSaleStatus returns the local row, refreshed from the backend when possible
func (s *SaleService) GetSaleStatus(ctx context.Context, localID int64) (*SaleStatusResult, error) {
	if localID <= 0 {
		return nil, repositories.ErrInvalidID
	}

	queued, err := s.queue.GetQueuedSale(ctx, localID)
	if err != nil {
		return nil, err
	}

	result := &SaleStatusResult{Sale: queued}
	if queued.ServerSaleID == nil || !s.conn.IsOnline() {
		return result, nil
	}

	remote, err := s.api.GetSaleStatus(ctx, *queued.ServerSaleID)
	if err != nil {
		s.logger.WithError(err).WithField("local_id", localID).Warn("Failed to fetch sale status from backend")
		return result, nil
	}
	result.Remote = remote
	return result, nil
}
