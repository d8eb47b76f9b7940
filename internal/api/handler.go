// Package api is the HTTP surface of repairdesk: the public price list,
// sign-in and the back-office catalog endpoints.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/repairdesk/internal/audit"
	"github.com/celerix-dev/repairdesk/internal/catalog"
	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/internal/ratelimit"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// Handler holds the collaborators of every endpoint.
type Handler struct {
	Catalog  *catalog.Service
	Auth     *session.Authenticator
	Sessions *session.Manager
	Resolver *audit.Resolver
	Guard    *ratelimit.Guard
	Cookie   session.CookieConfig
	Logger   *log.Logger
	Metrics  *metrics.Metrics
}

// forbidden is the single answer to both unauthenticated and unauthorized
// admin requests.
var forbidden = gin.H{"error": "forbidden"}

func (h *Handler) logger() *log.Logger {
	if h.Logger == nil {
		return log.Nop()
	}
	return h.Logger
}

func (h *Handler) sessionContext(c *gin.Context) session.Context {
	return session.ContextFromRequest(c.Request, h.Cookie.Name)
}

// lang reads ?lang= first, then the primary Accept-Language tag.
func lang(c *gin.Context) schema.Lang {
	if q := c.Query("lang"); q != "" {
		return schema.ParseLang(strings.ToLower(q))
	}
	al := c.GetHeader("Accept-Language")
	if len(al) >= 2 {
		return schema.ParseLang(strings.ToLower(al[:2]))
	}
	return schema.DefaultLang
}

// fail maps domain errors to HTTP answers. Unexpected errors are logged and
// reported without detail.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrForbidden):
		c.JSON(http.StatusForbidden, forbidden)
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, catalog.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrConflict), errors.Is(err, catalog.ErrInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger().WithError(err).ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "route", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
