package handlers

import (
	"net/http"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/config"
	"github.com/rbutdayev/xpos-sub008/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// maxBodyBytes caps request bodies on the local API
const maxBodyBytes = 1 << 20

// slowRequestThreshold marks requests logged as slow
const slowRequestThreshold = 2 * time.Second

// RouterConfig holds configuration for setting up routes
type RouterConfig struct {
	Sync     SyncController
	Events   EventSource
	Sales    SaleRecorder
	Catalog  CatalogSearcher
	Device   DeviceManager
	Auth     OfflineAuthenticator
	Fiscal   FiscalTester // nil when no fiscal printer is wired
	Health   HealthChecker
	Sessions *middleware.SessionManager
	Metrics  http.Handler
	API      config.APIConfig
	Version  string
	Logger   *logrus.Logger
}

// NewRouter builds the local control API engine
func NewRouter(cfg *RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	SetupMiddleware(router, cfg)
	SetupRoutes(router, cfg)
	return router
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, cfg *RouterConfig) {
	syncHandler := NewSyncHandler(cfg.Sync, cfg.Events, cfg.Logger)
	saleHandler := NewSaleHandler(cfg.Sales)
	catalogHandler := NewCatalogHandler(cfg.Catalog)
	deviceHandler := NewDeviceHandler(cfg.Device)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Sessions, cfg.Logger)
	fiscalHandler := NewFiscalHandler(cfg.Fiscal)
	healthHandler := NewHealthHandler(cfg.Health, cfg.Sync, cfg.Version)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", healthHandler.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	requireSession := middleware.Authentication(cfg.Sessions, cfg.Logger)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimiter(cfg.API.RateLimit, cfg.API.RateBurst, cfg.Logger))
	{
		v1.GET("/sync/status", syncHandler.Status)
		v1.POST("/sync", syncHandler.SyncNow)
		v1.GET("/events", syncHandler.Events)

		sales := v1.Group("/sales")
		sales.Use(middleware.OptionalAuthentication(cfg.Sessions, cfg.Logger))
		{
			sales.POST("", saleHandler.Create)
			sales.GET("/:id/status", saleHandler.Status)
		}

		v1.GET("/products/search", catalogHandler.SearchProducts)
		v1.GET("/customers/search", catalogHandler.SearchCustomers)

		device := v1.Group("/device")
		{
			device.GET("", deviceHandler.Status)
			device.POST("/register", deviceHandler.Register)
			device.POST("/disconnect", requireSession, middleware.Authorization("admin", "manager"), deviceHandler.Disconnect)
		}

		auth := v1.Group("/auth")
		{
			auth.POST("/offline-login", authHandler.OfflineLogin)
			auth.GET("/me", requireSession, authHandler.Me)
		}

		v1.POST("/fiscal/test", fiscalHandler.Test)
	}
}

// SetupMiddleware configures global middleware
func SetupMiddleware(router *gin.Engine, cfg *RouterConfig) {
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.API.AllowOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(maxBodyBytes))
	router.Use(middleware.StructuredLogger(cfg.Logger, slowRequestThreshold))
	router.Use(middleware.ErrorHandler(cfg.Logger))
}
