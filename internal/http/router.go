package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "confession-bot-backend/docs"
	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/middleware"
	adminhttp "confession-bot-backend/internal/features/admin/delivery/http"
	userhttp "confession-bot-backend/internal/features/user/delivery/http"
)

const serviceName = "confession-bot-backend"

// HealthChecker reports whether the document store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the handlers mounted by NewRouter.
type Deps struct {
	Webhook *WebhookHandler
	Admin   *adminhttp.AdminHandler
	Users   *userhttp.UserHandler
	Store   HealthChecker
}

// NewRouter assembles the gin engine: probes, the Telegram webhook, the
// mini-app API and swagger.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger("/health", "/live", "/ready"))
	router.Use(middleware.HandleErrors())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Telegram-Init-Data", "init_data"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if deps.Store != nil {
			if err := deps.Store.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   "redis unavailable",
					"details": err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	if deps.Webhook != nil {
		deps.Webhook.RegisterRoutes(router)
	}

	v1 := router.Group("/api/v1")
	if deps.Admin != nil {
		deps.Admin.RegisterRoutes(v1)
	}
	if deps.Users != nil {
		deps.Users.RegisterRoutes(v1)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return router
}
