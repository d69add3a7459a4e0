package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeviceHandler handles kiosk registration
type DeviceHandler struct {
	device DeviceManager
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(device DeviceManager) *DeviceHandler {
	return &DeviceHandler{device: device}
}

// RegisterRequest is the body of POST /device/register
type RegisterRequest struct {
	RegistrationCode string `json:"registration_code" binding:"required"`
}

// DeviceStatusResponse describes this kiosk
type DeviceStatusResponse struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	BranchID   int64  `json:"branch_id"`
	Version    string `json:"version"`
	Registered bool   `json:"registered"`
}

// @Summary Device status
// @Tags device
// @Produce json
// @Success 200 {object} DeviceStatusResponse
// @Router /device [get]
func (h *DeviceHandler) Status(c *gin.Context) {
	info := h.device.Info()
	c.JSON(http.StatusOK, DeviceStatusResponse{
		DeviceID:   info.DeviceID,
		DeviceName: info.DeviceName,
		BranchID:   info.BranchID,
		Version:    info.Version,
		Registered: h.device.IsRegistered(),
	})
}

// @Summary Register device
// @Description Exchanges a registration code for a device token and applies the backend sync schedule
// @Tags device
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration code"
// @Success 200 {object} DeviceStatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /device/register [post]
func (h *DeviceHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondStatus(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.device.Register(c.Request.Context(), req.RegistrationCode)
	if err != nil {
		respondError(c, "Registration failed", err)
		return
	}

	info := h.device.Info()
	c.JSON(http.StatusOK, DeviceStatusResponse{
		DeviceID:   resp.DeviceID,
		DeviceName: info.DeviceName,
		BranchID:   resp.BranchID,
		Version:    info.Version,
		Registered: true,
	})
}

// @Summary Disconnect device
// @Description Notifies the backend and clears the device token
// @Tags device
// @Produce json
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Router /device/disconnect [post]
func (h *DeviceHandler) Disconnect(c *gin.Context) {
	if err := h.device.Disconnect(c.Request.Context()); err != nil {
		respondError(c, "Disconnect failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
