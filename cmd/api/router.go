package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/maxwell-labs/maxwells-wallet/pkg/middleware"
)

// NewRouter assembles the gin engine with middleware and all domain routes.
func NewRouter(deps *Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.RateLimit(
		deps.Config.Server.RateLimitPerSecond,
		deps.Config.Server.RateLimitBurst,
	))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api/v1")
	{
		deps.ImportHandler.Register(api)
		deps.TransactionHandler.Register(api)
		deps.TagHandler.Register(api)
		deps.RuleHandler.Register(api)
		deps.TransferHandler.Register(api)
		deps.MerchantHandler.Register(api)
	}

	return router
}
