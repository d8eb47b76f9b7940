package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCategories(c *gin.Context) {
	cats, err := h.Catalog.Categories(c.Request.Context(), lang(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *Handler) GetModels(c *gin.Context) {
	models, err := h.Catalog.Models(c.Request.Context(), c.Param("id"), lang(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models)
}

func (h *Handler) GetPrices(c *gin.Context) {
	table, err := h.Catalog.PriceTable(c.Request.Context(), c.Param("id"), lang(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *Handler) GetAnnouncements(c *gin.Context) {
	anns, err := h.Catalog.Announcements(c.Request.Context(), lang(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, anns)
}

func (h *Handler) GetArticles(c *gin.Context) {
	arts, err := h.Catalog.Articles(c.Request.Context(), lang(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, arts)
}

func (h *Handler) GetArticle(c *gin.Context) {
	art, err := h.Catalog.Article(c.Request.Context(), c.Param("slug"), lang(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, art)
}
