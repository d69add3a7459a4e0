package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/adapters/fiscal"
	"github.com/rbutdayev/xpos-sub008/internal/middleware"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"
	"github.com/rbutdayev/xpos-sub008/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the error body of every local API endpoint
type ErrorResponse = middleware.ErrorResponse

// statusFor maps service and transport errors to HTTP status codes
func statusFor(err error) int {
	var validationErrors validator.ValidationErrors
	var httpErr *backend.HTTPError
	var reqErr *backend.RequestError

	switch {
	case errors.As(err, &validationErrors),
		errors.Is(err, repositories.ErrInvalidID),
		errors.Is(err, services.ErrInvalidSale),
		repositories.IsValidation(err):
		return http.StatusBadRequest
	case fiscal.IsConfigError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case repositories.IsNotFound(err), errors.Is(err, services.ErrNoFiscalConfig):
		return http.StatusNotFound
	case errors.Is(err, services.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrFiscalFailed):
		return http.StatusBadGateway
	case errors.As(err, &httpErr):
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return httpErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &reqErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status statusFor picks
func respondError(c *gin.Context, title string, err error) {
	respondStatus(c, statusFor(err), title, err)
}

func respondStatus(c *gin.Context, status int, title string, err error) {
	response := ErrorResponse{
		Error:     title,
		RequestID: c.GetString(middleware.RequestIDKey),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		response.Message = err.Error()
		response.ValidationErrors = middleware.ValidationDetails(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
	}
	c.JSON(status, response)
}
