package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/middleware"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"
	"github.com/rbutdayev/xpos-sub008/internal/services"

	"github.com/gin-gonic/gin"
)

// SaleHandler handles sale-related HTTP requests
type SaleHandler struct {
	sales SaleRecorder
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(sales SaleRecorder) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// FiscalFailureResponse is returned when the fiscal receipt could not be printed
type FiscalFailureResponse struct {
	ErrorResponse
	Fiscal *models.FiscalResult `json:"fiscal,omitempty"`
}

// @Summary Record a sale
// @Description Prints the fiscal receipt when a fiscal device is configured, queues the sale and uploads it when online
// @Tags sales
// @Accept json
// @Produce json
// @Param sale body models.Sale true "Sale"
// @Success 201 {object} services.RecordSaleResult
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} FiscalFailureResponse
// @Router /sales [post]
func (h *SaleHandler) Create(c *gin.Context) {
	var sale models.Sale
	if err := c.ShouldBindJSON(&sale); err != nil {
		respondStatus(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if sale.UserID == nil {
		if claims, ok := middleware.SessionUser(c); ok {
			userID := claims.UserID
			sale.UserID = &userID
		}
	}

	result, err := h.sales.RecordSale(c.Request.Context(), &sale)
	if err != nil {
		if errors.Is(err, services.ErrFiscalFailed) && result != nil {
			c.JSON(http.StatusBadGateway, FiscalFailureResponse{
				ErrorResponse: ErrorResponse{
					Error:     "Fiscal receipt failed",
					Message:   err.Error(),
					RequestID: c.GetString(middleware.RequestIDKey),
					Timestamp: time.Now().Format(time.RFC3339),
				},
				Fiscal: result.Fiscal,
			})
			return
		}
		respondError(c, "Failed to record sale", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// @Summary Sale status
// @Description Local queue state of a sale, refreshed from the backend when online
// @Tags sales
// @Produce json
// @Param id path int true "Local sale id"
// @Success 200 {object} services.SaleStatusResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sales/{id}/status [get]
func (h *SaleHandler) Status(c *gin.Context) {
	localID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondStatus(c, http.StatusBadRequest, "Invalid sale id", repositories.ErrInvalidID)
		return
	}

	status, err := h.sales.GetSaleStatus(c.Request.Context(), localID)
	if err != nil {
		respondError(c, "Failed to get sale status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}
