// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"time"

	"example/meal-planner-api/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func NewRouter(d Deps) *gin.Engine {
	h := NewHandlers(d)

	router := gin.New()
	router.Use(RequestLogger(), gin.Recovery(), h.metrics.Middleware())
	router.Use(cors.New(corsConfig(h.cfg.App.CORSOrigins)))

	router.GET("/health", Health)
	router.GET("/metrics", h.metrics.Handler())
	router.POST("/api/webhooks/stripe", h.StripeWebhook)

	protected := router.Group("/api")
	protected.Use(auth.Middleware(d.Verifier, auth.MiddlewareConfig{}))
	protected.GET("/me", h.Me)
	protected.POST("/subscriptions", h.CreateSubscription)
	protected.GET("/subscriptions/status", h.GetSubscriptionStatus)
	protected.POST("/subscriptions/cancel", h.CancelSubscription)
	protected.GET("/payment-methods", h.ListPaymentMethods)
	protected.POST("/billing/portal-session", h.CreatePortalSession)
	protected.POST("/recipes/extract", h.ExtractRecipe)
	protected.POST("/recipes/image", h.GenerateRecipeImage)

	return router
}

// corsConfig allows any origin when none or "*" is configured. Credentials
// are only allowed for an explicit origin list.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
