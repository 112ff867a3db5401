package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/guttosm/settlepulse/internal/middleware"
)

// RouterOptions tunes the middleware chain.
type RouterOptions struct {
	RequestTimeout time.Duration
	RateEvery      time.Duration
	RateBurst      int
}

// DefaultRouterOptions allows 60 requests per minute per client and bounds
// each request to 30 seconds, enough for a performance replay that marks
// positions through remote providers.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{RequestTimeout: 30 * time.Second, RateEvery: time.Second, RateBurst: 60}
}

// NewRouter creates a Gin engine with middlewares, swagger and the v1 routes.
// Health probes are registered separately by app.InitializeApp.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
		middleware.RateLimiter(opts.RateEvery, opts.RateBurst),
	)

	// ─── Timeout ──────────────────────────────────
	if opts.RequestTimeout > 0 {
		router.Use(func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), opts.RequestTimeout)
			defer cancel()
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}

	// ─── Swagger ──────────────────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ─── API v1 ───────────────────────────────────
	v1 := router.Group("/api/v1")
	{
		v1.GET("/trades", handler.GetTrades)
		v1.GET("/positions", handler.GetPositions)
		v1.GET("/performance", handler.GetPerformance)
		v1.GET("/prices/:code", handler.GetPrice)
	}

	return router
}
