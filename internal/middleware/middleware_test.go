package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000/"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := serve(r, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(0.001, 2, quietLogger()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should be allowed", i+1)
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body.Error)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(quietLogger()))
	r.GET("/private", func(c *gin.Context) { _ = c.Error(assert.AnError) })
	r.GET("/public", func(c *gin.Context) { _ = c.Error(assert.AnError).SetType(gin.ErrorTypePublic) })
	r.GET("/answered", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), assert.AnError.Error())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/answered", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(4))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidationDetails(t *testing.T) {
	type payload struct {
		Code  string `validate:"required"`
		Count int    `validate:"gt=0"`
	}
	err := validator.New().Struct(payload{})
	require.Error(t, err)

	details := ValidationDetails(err)
	require.Len(t, details, 2)
	assert.Equal(t, "Code is required", details[0].Message)
	assert.Equal(t, "Count must be greater than 0", details[1].Message)

	assert.Nil(t, ValidationDetails(assert.AnError))
}

func TestSessionManager(t *testing.T) {
	sessions, err := NewSessionManager(SessionConfig{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)

	token, expiresAt, err := sessions.Issue(models.User{ID: 7, Username: "anna", Role: "cashier"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := sessions.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "anna", claims.Username)

	other, err := NewSessionManager(SessionConfig{})
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.Error(t, err, "tokens from another secret are rejected")

	expired, err := NewSessionManager(SessionConfig{Secret: "test-secret", TTL: time.Nanosecond})
	require.NoError(t, err)
	stale, _, err := expired.Issue(models.User{ID: 1})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = sessions.Validate(stale)
	assert.Error(t, err)
}

func TestAuthentication(t *testing.T) {
	sessions, err := NewSessionManager(SessionConfig{Secret: "s"})
	require.NoError(t, err)
	token, _, err := sessions.Issue(models.User{ID: 3, Username: "lead", Role: "manager"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/required", Authentication(sessions, quietLogger()), Authorization("admin", "manager"), func(c *gin.Context) {
		claims, ok := SessionUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Username)
	})
	r.GET("/admin", Authentication(sessions, quietLogger()), Authorization("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/optional", OptionalAuthentication(sessions, quietLogger()), func(c *gin.Context) {
		if _, ok := SessionUser(c); ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	withToken := func(path, value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if value != "" {
			req.Header.Set("Authorization", value)
		}
		return req
	}

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantBody string
	}{
		{"valid session", withToken("/required", "Bearer "+token), http.StatusOK, "lead"},
		{"missing header", withToken("/required", ""), http.StatusUnauthorized, ""},
		{"bad scheme", withToken("/required", "Basic "+token), http.StatusUnauthorized, ""},
		{"garbage token", withToken("/required", "Bearer nope"), http.StatusUnauthorized, ""},
		{"wrong role", withToken("/admin", "Bearer "+token), http.StatusForbidden, ""},
		{"optional with session", withToken("/optional", "Bearer "+token), http.StatusOK, "user"},
		{"optional with bad token", withToken("/optional", "Bearer nope"), http.StatusOK, "anonymous"},
		{"optional without token", withToken("/optional", ""), http.StatusOK, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.req)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
