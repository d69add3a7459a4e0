package handlers

import (
	"net/http"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/middleware"
	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles operator login against the synced user list
type AuthHandler struct {
	auth     OfflineAuthenticator
	sessions *middleware.SessionManager
	logger   *logrus.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(auth OfflineAuthenticator, sessions *middleware.SessionManager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// @Summary Offline login
// @Description Checks credentials against users synced from the backend and issues a local session token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/offline-login [post]
func (h *AuthHandler) OfflineLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondStatus(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.auth.OfflineLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, "Login failed", err)
		return
	}

	token, expiresAt, err := h.sessions.Issue(*user)
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, "Failed to issue session", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Operator logged in")

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	})
}

// @Summary Current operator
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} middleware.SessionClaims
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.SessionUser(c)
	if !ok {
		respondStatus(c, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	c.JSON(http.StatusOK, claims)
}
