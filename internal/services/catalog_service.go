package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// Search result sources
const (
	SourceBackend = "backend"
	SourceLocal   = "local"
)

// SearchResult carries matches and where they came from
type SearchResult[T any] struct {
	Items  []*T   `json:"items"`
	Source string `json:"source"`
}

// CatalogService searches products and customers, online first
type CatalogService struct {
	products  repositories.ProductRepository
	customers repositories.CustomerRepository
	api       CatalogAPI
	conn      Connectivity
	logger    *logrus.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products repositories.ProductRepository, customers repositories.CustomerRepository, api CatalogAPI, conn Connectivity, logger *logrus.Logger) *CatalogService {
	if logger == nil {
		logger = logrus.New()
	}
	return &CatalogService{
		products:  products,
		customers: customers,
		api:       api,
		conn:      conn,
		logger:    logger,
	}
}

// SearchProducts queries the backend when online and falls back to the local mirror
func (s *CatalogService) SearchProducts(ctx context.Context, term string, limit int) (*SearchResult[models.Product], error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	if s.conn.IsOnline() {
		items, err := s.api.SearchProducts(ctx, term, limit)
		if err == nil {
			return &SearchResult[models.Product]{Items: items, Source: SourceBackend}, nil
		}
		s.logger.WithError(err).WithField("query", term).Warn("Backend product search failed, using local catalogue")
	}

	items, err := s.products.SearchProducts(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult[models.Product]{Items: items, Source: SourceLocal}, nil
}

// SearchCustomers queries the backend when online and falls back to the local mirror
func (s *CatalogService) SearchCustomers(ctx context.Context, term string, limit int) (*SearchResult[models.Customer], error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	if s.conn.IsOnline() {
		items, err := s.api.SearchCustomers(ctx, term, limit)
		if err == nil {
			return &SearchResult[models.Customer]{Items: items, Source: SourceBackend}, nil
		}
		s.logger.WithError(err).WithField("query", term).Warn("Backend customer search failed, using local customers")
	}

	items, err := s.customers.SearchCustomers(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult[models.Customer]{Items: items, Source: SourceLocal}, nil
}
