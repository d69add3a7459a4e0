package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// CatalogHandler handles product and customer search
type CatalogHandler struct {
	catalog CatalogSearcher
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog CatalogSearcher) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func searchParams(c *gin.Context) (string, int, error) {
	query := c.Query("q")
	if query == "" {
		return "", 0, fmt.Errorf("query parameter q is required")
	}

	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 || val > maxSearchLimit {
			return "", 0, fmt.Errorf("invalid limit parameter: must be an integer between 1 and %d", maxSearchLimit)
		}
		limit = val
	}
	return query, limit, nil
}

// @Summary Search products
// @Description Searches the backend catalog when online, the local copy otherwise
// @Tags catalog
// @Produce json
// @Param q query string true "Search term"
// @Param limit query int false "Maximum results" default(20)
// @Success 200 {object} services.SearchResult[models.Product]
// @Failure 400 {object} ErrorResponse
// @Router /products/search [get]
func (h *CatalogHandler) SearchProducts(c *gin.Context) {
	query, limit, err := searchParams(c)
	if err != nil {
		respondStatus(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	result, err := h.catalog.SearchProducts(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, "Failed to search products", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Search customers
// @Description Searches backend customers when online, the local copy otherwise
// @Tags catalog
// @Produce json
// @Param q query string true "Search term"
// @Param limit query int false "Maximum results" default(20)
// @Success 200 {object} services.SearchResult[models.Customer]
// @Failure 400 {object} ErrorResponse
// @Router /customers/search [get]
func (h *CatalogHandler) SearchCustomers(c *gin.Context) {
	query, limit, err := searchParams(c)
	if err != nil {
		respondStatus(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	result, err := h.catalog.SearchCustomers(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, "Failed to search customers", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
