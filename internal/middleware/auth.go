package middleware

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Context keys set by the session middleware
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
	RoleKey     = "role"
	ClaimsKey   = "claims"
)

// DefaultSessionTTL is used when SessionConfig.TTL is zero
const DefaultSessionTTL = 12 * time.Hour

// SessionClaims are the claims of an operator session token issued after offline login
type SessionClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// SessionManager issues and validates operator session tokens
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewSessionManager creates a session manager. An empty secret is replaced by
// random bytes, so sessions do not survive a restart.
func NewSessionManager(config SessionConfig) (*SessionManager, error) {
	secret := []byte(config.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "kiosk-sync"
	}

	return &SessionManager{secret: secret, ttl: ttl, issuer: issuer}, nil
}

// Issue signs a session token for user
func (m *SessionManager) Issue(user models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)

	claims := &SessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate parses a session token and returns its claims
func (m *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setSession(c *gin.Context, claims *SessionClaims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UsernameKey, claims.Username)
	c.Set(RoleKey, claims.Role)
	c.Set(ClaimsKey, claims)
}

// Authentication requires a valid operator session token
func Authentication(sessions *SessionManager, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     "Unauthorized",
				Message:   "Authorization header with a Bearer token is required",
				RequestID: c.GetString(RequestIDKey),
				Timestamp: time.Now().Format(time.RFC3339),
			})
			return
		}

		claims, err := sessions.Validate(tokenString)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"error": err.Error(),
				"path":  c.Request.URL.Path,
			}).Warn("Session validation failed")

			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     "Unauthorized",
				Message:   "Invalid or expired session",
				RequestID: c.GetString(RequestIDKey),
				Timestamp: time.Now().Format(time.RFC3339),
			})
			return
		}

		setSession(c, claims)
		c.Next()
	}
}

// OptionalAuthentication attaches the session when a valid token is sent
// and lets the request through either way
func OptionalAuthentication(sessions *SessionManager, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			claims, err := sessions.Validate(tokenString)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"error": err.Error(),
					"path":  c.Request.URL.Path,
				}).Debug("Optional session validation failed")
			} else {
				setSession(c, claims)
			}
		}
		c.Next()
	}
}

// Authorization requires the session role to be one of roles.
// It must run after Authentication.
func Authorization(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roles) == 0 {
			c.Next()
			return
		}

		role := c.GetString(RoleKey)
		for _, allowed := range roles {
			if strings.EqualFold(role, allowed) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Error:     "Forbidden",
			Message:   fmt.Sprintf("role %q may not perform this action", role),
			RequestID: c.GetString(RequestIDKey),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// SessionUser returns the operator attached by the session middleware
func SessionUser(c *gin.Context) (*SessionClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*SessionClaims)
	return claims, ok
}
