package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/deal-comb/app/cfg"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, accessKey string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware, feed readers and dashboards fetch cross-origin
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, accessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, accessKey string) {
	// Feed endpoints; the aggregate feed accepts a format extension directly
	// on the path since there is no slug segment to attach it to
	r.GET("/feeds", handler.GetAggregateFeed)
	r.GET("/feeds.rss", handler.GetAggregateFeed)
	r.GET("/feeds.atom", handler.GetAggregateFeed)
	r.GET("/feeds.json", handler.GetAggregateFeed)
	r.GET("/feeds/:slug", handler.GetCategoryFeed)

	r.GET("/categories", handler.ListCategories)

	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Manual refresh endpoints (authenticated when ACCESS_KEY is set)
	refresh := r.Group("/refresh")
	if accessKey != "" {
		refresh.Use(authMiddleware(accessKey))
		slog.Info("Manual refresh endpoints enabled with authentication")
	} else {
		slog.Info("Manual refresh endpoints enabled without authentication (ACCESS_KEY not set)")
	}
	refresh.POST("", handler.RefreshAll)
	refresh.POST("/:slug", handler.RefreshCategory)

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "Deal Comb",
			"version":     cfg.Get().Version,
			"description": "Category-partitioned deal feeds in RSS, Atom and JSON Feed formats",
			"endpoints": map[string]string{
				"feeds":      "/feeds/<slug>.<rss|atom|json>",
				"aggregate":  "/feeds.<rss|atom|json>",
				"categories": "/categories",
				"refresh":    "/refresh (POST), /refresh/<slug> (POST)",
				"health":     "/health",
				"stats":      "/stats",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for the refresh endpoints
func authMiddleware(accessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != accessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
