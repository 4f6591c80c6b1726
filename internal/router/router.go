// internal/router/router.go
package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/handlers"
	"github.com/javajoker/catalog-tracker/internal/metrics"
	"github.com/javajoker/catalog-tracker/internal/middleware"
	"github.com/javajoker/catalog-tracker/internal/services"
	"github.com/javajoker/catalog-tracker/internal/store"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

const version = "1.0.0"

// Dependencies are the services the API serves. Crawl may be nil, in which
// case the admin crawl routes are not mounted.
type Dependencies struct {
	Crawl   *services.CrawlService
	RunCtx  context.Context
	Gateway store.Gateway
}

func Initialize(db *gorm.DB, cfg *config.Config, deps Dependencies) *gin.Engine {
	if deps.Gateway == nil {
		deps.Gateway = store.NewGormStore(db)
	}
	if deps.RunCtx == nil {
		deps.RunCtx = context.Background()
	}

	// Initialize services
	productService := services.NewProductService(db, cfg)
	consistencyService := services.NewConsistencyService(deps.Gateway)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(productService, consistencyService)
	adminHandler := handlers.NewAdminHandler(deps.RunCtx, deps.Crawl, consistencyService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())

	r.GET("/health", func(c *gin.Context) {
		code, health, dbStatus := http.StatusOK, "healthy", "up"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			code, health, dbStatus = http.StatusServiceUnavailable, "unhealthy", "down"
		}
		c.JSON(code, gin.H{
			"status":   health,
			"database": dbStatus,
			"version":  version,
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", productHandler.GetProducts)
			products.GET("/stale", productHandler.GetStaleProducts)
			products.GET("/top-sellers", productHandler.GetTopSellers)
			products.GET("/:id", productHandler.GetProduct)
			products.GET("/:id/stock-history", productHandler.GetStockHistory)
			products.GET("/:id/price-history", productHandler.GetPriceHistory)
			products.GET("/:id/sales-history", productHandler.GetSalesHistory)
			products.GET("/:id/stock-changes", productHandler.GetStockChanges)
			products.GET("/:id/consistency", productHandler.GetConsistency)
		}

		v1.GET("/categories", productHandler.GetCategories)
		v1.GET("/runs", productHandler.GetRuns)

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/consistency", adminHandler.AuditConsistency)
			if deps.Crawl != nil {
				admin.POST("/crawl", adminHandler.StartCrawl)
				admin.GET("/crawl", adminHandler.GetCrawlStatus)
			}
		}
	}

	return r
}
