package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FiscalHandler exposes fiscal printer diagnostics
type FiscalHandler struct {
	fiscal FiscalTester
}

// NewFiscalHandler creates a new fiscal handler
func NewFiscalHandler(fiscal FiscalTester) *FiscalHandler {
	return &FiscalHandler{fiscal: fiscal}
}

// @Summary Test fiscal printer
// @Description Initializes the printer from the synced fiscal config and probes it
// @Tags fiscal
// @Produce json
// @Success 200 {object} models.FiscalConnectionResult
// @Failure 404 {object} ErrorResponse
// @Router /fiscal/test [post]
func (h *FiscalHandler) Test(c *gin.Context) {
	if h.fiscal == nil {
		respondStatus(c, http.StatusNotFound, "Fiscal printing is not configured", nil)
		return
	}

	result, err := h.fiscal.TestConnection(c.Request.Context())
	if err != nil {
		respondError(c, "Fiscal test failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
