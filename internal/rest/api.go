package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dfryer1193/catalog/internal/middleware"
)

// Options configures the router around the product routes.
type Options struct {
	AllowedOrigins  []string
	UploadRateLimit float64
	UploadRateBurst int

	// StaticPrefix and StaticDir serve locally stored images; both empty disables it.
	StaticPrefix string
	StaticDir    string

	// Health reports whether the database answers; nil always reports healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(products *ProductsApi, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	if opts.StaticPrefix != "" && opts.StaticDir != "" {
		router.Static(opts.StaticPrefix, opts.StaticDir)
	}

	router.GET("/health", healthHandler(opts.Health))
	NewApi(router, products, opts)

	return router
}

func NewApi(router *gin.Engine, products *ProductsApi, opts Options) {
	router.POST("/upload",
		middleware.RateLimit(opts.UploadRateLimit, opts.UploadRateBurst),
		StoreUploadedImage(products.store, ProductImageField),
		products.UploadProduct,
	)
	router.GET("/", products.ListProducts)
	router.GET("/:id", products.GetProduct)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Content-Length", "Accept", middleware.RequestIDHeader}
	cfg.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "db": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
