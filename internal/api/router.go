package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/internal/metrics"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter wires every endpoint of h.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger(), h.Metrics), cors(opts.CORSOrigins))

	r.GET("/healthz", h.Health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/categories", h.GetCategories)
		apiGroup.GET("/categories/:id/models", h.GetModels)
		apiGroup.GET("/models/:id/prices", h.GetPrices)
		apiGroup.GET("/announcements", h.GetAnnouncements)
		apiGroup.GET("/articles", h.GetArticles)
		apiGroup.GET("/articles/:slug", h.GetArticle)

		apiGroup.POST("/auth/sign-in", h.SignIn)
		apiGroup.POST("/auth/sign-out", h.SignOut)
		apiGroup.GET("/auth/me", h.Me)
	}

	admin := apiGroup.Group("/admin")
	{
		admin.GET("/audit", h.GetAudit)

		admin.POST("/categories", h.CreateCategory)
		admin.PUT("/categories/:id", h.UpdateCategory)
		admin.DELETE("/categories/:id", h.DeleteCategory)
		admin.PUT("/categories/:id/active", h.SetCategoryActive)
		admin.POST("/categories/:id/services", h.LinkService)
		admin.DELETE("/category-services/:id", h.UnlinkService)

		admin.POST("/models", h.CreateModel)
		admin.PUT("/models/:id", h.UpdateModel)
		admin.DELETE("/models/:id", h.DeleteModel)
		admin.PUT("/models/:id/active", h.SetModelActive)
		admin.POST("/models/:id/images", h.AddImage)
		admin.DELETE("/images/:id", h.RemoveImage)

		admin.POST("/services", h.CreateService)
		admin.PUT("/services/:id", h.UpdateService)
		admin.DELETE("/services/:id", h.DeleteService)
		admin.PUT("/services/:id/active", h.SetServiceActive)

		admin.PUT("/prices", h.SetPrice)
		admin.DELETE("/prices/:id", h.DeletePrice)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func cors(origins []string) gin.HandlerFunc {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Accept-Language, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *log.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.ObserveHTTP(c.Request.Method, route, status, elapsed)

		// health and scrape traffic stays out of the log
		if strings.HasPrefix(route, "/healthz") || strings.HasPrefix(route, "/metrics") {
			return
		}
		logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
