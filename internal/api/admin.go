package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

type activeInput struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// bind decodes the JSON body into v, answering 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// respond writes v or maps err.
func (h *Handler) respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	if v == nil {
		c.Status(status)
		return
	}
	c.JSON(status, v)
}

// --- Categories ---

func (h *Handler) CreateCategory(c *gin.Context) {
	var in schema.Category
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.CreateCategory(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusCreated, out, err)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	var in schema.Category
	if !bind(c, &in) {
		return
	}
	in.ID = c.Param("id")
	out, err := h.Catalog.UpdateCategory(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusOK, out, err)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	err := h.Catalog.DeleteCategory(c.Request.Context(), h.sessionContext(c), c.Param("id"))
	h.respond(c, http.StatusNoContent, nil, err)
}

func (h *Handler) SetCategoryActive(c *gin.Context) {
	var in activeInput
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.SetCategoryActive(c.Request.Context(), h.sessionContext(c), c.Param("id"), *in.IsActive)
	h.respond(c, http.StatusOK, out, err)
}

func (h *Handler) LinkService(c *gin.Context) {
	var in struct {
		ServiceID string `json:"service_id" binding:"required"`
	}
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.LinkService(c.Request.Context(), h.sessionContext(c), c.Param("id"), in.ServiceID)
	h.respond(c, http.StatusCreated, out, err)
}

func (h *Handler) UnlinkService(c *gin.Context) {
	err := h.Catalog.UnlinkService(c.Request.Context(), h.sessionContext(c), c.Param("id"))
	h.respond(c, http.StatusNoContent, nil, err)
}

// --- Models ---

func (h *Handler) CreateModel(c *gin.Context) {
	var in schema.DeviceModel
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.CreateModel(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusCreated, out, err)
}

func (h *Handler) UpdateModel(c *gin.Context) {
	var in schema.DeviceModel
	if !bind(c, &in) {
		return
	}
	in.ID = c.Param("id")
	out, err := h.Catalog.UpdateModel(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusOK, out, err)
}

func (h *Handler) DeleteModel(c *gin.Context) {
	err := h.Catalog.DeleteModel(c.Request.Context(), h.sessionContext(c), c.Param("id"))
	h.respond(c, http.StatusNoContent, nil, err)
}

func (h *Handler) SetModelActive(c *gin.Context) {
	var in activeInput
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.SetModelActive(c.Request.Context(), h.sessionContext(c), c.Param("id"), *in.IsActive)
	h.respond(c, http.StatusOK, out, err)
}

func (h *Handler) AddImage(c *gin.Context) {
	var in schema.DeviceImage
	if !bind(c, &in) {
		return
	}
	in.ModelID = c.Param("id")
	out, err := h.Catalog.AddImage(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusCreated, out, err)
}

func (h *Handler) RemoveImage(c *gin.Context) {
	err := h.Catalog.RemoveImage(c.Request.Context(), h.sessionContext(c), c.Param("id"))
	h.respond(c, http.StatusNoContent, nil, err)
}

// --- Services ---

func (h *Handler) CreateService(c *gin.Context) {
	var in schema.Service
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.CreateService(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusCreated, out, err)
}

func (h *Handler) UpdateService(c *gin.Context) {
	var in schema.Service
	if !bind(c, &in) {
		return
	}
	in.ID = c.Param("id")
	out, err := h.Catalog.UpdateService(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusOK, out, err)
}

func (h *Handler) DeleteService(c *gin.Context) {
	err := h.Catalog.DeleteService(c.Request.Context(), h.sessionContext(c), c.Param("id"))
	h.respond(c, http.StatusNoContent, nil, err)
}

func (h *Handler) SetServiceActive(c *gin.Context) {
	var in activeInput
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.SetServiceActive(c.Request.Context(), h.sessionContext(c), c.Param("id"), *in.IsActive)
	h.respond(c, http.StatusOK, out, err)
}

// --- Prices ---

func (h *Handler) SetPrice(c *gin.Context) {
	var in schema.Price
	if !bind(c, &in) {
		return
	}
	out, err := h.Catalog.SetPrice(c.Request.Context(), h.sessionContext(c), in)
	h.respond(c, http.StatusOK, out, err)
}

func (h *Handler) DeletePrice(c *gin.Context) {
	err := h.Catalog.DeletePrice(c.Request.Context(), h.sessionContext(c), c.Param("id"))
	h.respond(c, http.StatusNoContent, nil, err)
}

// --- Audit ---

func (h *Handler) GetAudit(c *gin.Context) {
	f := engine.AuditFilter{
		AdminID:   schema.AdminID(c.Query("admin_id")),
		TableName: schema.AuditTable(c.Query("table")),
		RecordID:  c.Query("record_id"),
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		f.Limit = n
	}
	entries, err := h.Catalog.AuditTrail(c.Request.Context(), h.sessionContext(c), f)
	if err == nil && entries == nil {
		entries = []schema.AuditEntry{}
	}
	h.respond(c, http.StatusOK, entries, err)
}
