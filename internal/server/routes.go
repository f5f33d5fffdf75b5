package server

import (
	"net/http"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/observability"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = JSONErrorHandler(h.Logger)

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication; browsers cannot set headers on websockets
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key,query:api_key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)           // Health check endpoint
	v1.GET("/prices/avax", h.NativePrice) // Cached AVAX/USD quote

	// Launch endpoints with rate limiting
	launches := v1.Group("/launches")
	launches.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.rateLimit()),
		Burst:     10,
		ExpiresIn: 2 * time.Minute,
	})))
	launches.GET("", h.LaunchesList)        // Current launch list
	launches.GET("/stream", h.LaunchStream) // Websocket live feed

	v1.GET("/deployers/:wallet", h.DeployerGet) // Registry stats for one deployer

	// Runtime settings, only when the Redis store is configured
	if h.Flags != nil {
		flagGroup := v1.Group("/flags")
		flagGroup.GET("", h.FlagsList)           // List overridden settings
		flagGroup.POST("", h.FlagsUpsert)        // Create or replace a setting
		flagGroup.GET("/:key", h.FlagsGet)       // Get one setting
		flagGroup.PUT("/:key", h.FlagsUpdate)    // Update one setting
		flagGroup.DELETE("/:key", h.FlagsDelete) // Remove an override
	}

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
