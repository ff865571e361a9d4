package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/feedbase/feedbase/docs"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Metrics())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/magic-link", h.RateLimit("magiclink"), h.MagicLink)
			auth.GET("/callback", h.Callback)
			auth.GET("/google", h.GoogleStart)
			auth.GET("/google/callback", h.GoogleCallback)
			auth.GET("/me", AuthJWT(h.Cfg.JWTSecret), h.Me)
		}

		bill := api.Group("/billing", AuthJWT(h.Cfg.JWTSecret))
		{
			bill.POST("/checkout", h.CreateCheckout)
			bill.POST("/portal", h.CreatePortal)
			bill.GET("/sync", h.BillingSync)
		}

		// signature-authenticated, not session-authenticated
		api.POST("/webhook/stripe", h.StripeWebhook)

		boards := api.Group("/boards", AuthJWT(h.Cfg.JWTSecret))
		{
			boards.POST("", h.CreateBoard)
			boards.GET("", h.ListBoards)
			boards.DELETE("/:id", h.DeleteBoard)
		}

		api.GET("/public/boards/:id", h.PublicBoard)
	}
	return r
}
