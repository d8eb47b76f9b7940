package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/repairdesk/internal/session"
)

// Sign-in outcomes for the login metric.
const (
	loginOK          = "ok"
	loginInvalid     = "invalid"
	loginRateLimited = "rate_limited"
	loginError       = "error"
)

func (h *Handler) SignIn(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	key := c.ClientIP() + "|" + strings.ToLower(strings.TrimSpace(input.Email))
	if !h.Guard.Allow(ctx, key) {
		h.Metrics.RecordLogin(loginRateLimited)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts", "code": session.CodeRateLimited})
		return
	}

	res, err := h.Auth.SignIn(ctx, input.Email, input.Password)
	if session.HasCode(err, session.CodeInvalidCredentials) {
		h.Metrics.RecordLogin(loginInvalid)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password", "code": session.CodeInvalidCredentials})
		return
	}
	if err != nil {
		h.Metrics.RecordLogin(loginError)
		h.fail(c, err)
		return
	}

	if err := h.Sessions.SetCookie(c.Writer, h.Cookie, res.Token, res.ExpiresAt); err != nil {
		h.Metrics.RecordLogin(loginError)
		h.fail(c, err)
		return
	}
	h.Metrics.RecordLogin(loginOK)
	c.JSON(http.StatusOK, gin.H{
		"user":       res.Subject,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
	})
}

func (h *Handler) SignOut(c *gin.Context) {
	session.ClearCookie(c.Writer, h.Cookie)
	c.Status(http.StatusNoContent)
}

// Me returns the session subject and, when they hold an active admin
// grant, its role.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	sc := h.sessionContext(c)

	subject, err := h.Sessions.CurrentUser(ctx, sc)
	if err != nil {
		h.fail(c, err)
		return
	}
	if subject == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	out := gin.H{"user": subject}
	if admin, ok := h.Resolver.ResolveCurrentAdmin(ctx, sc); ok {
		out["admin"] = gin.H{"id": admin.ID, "role": admin.Role}
	}
	c.JSON(http.StatusOK, out)
}
