// Package handler exposes merchant alias management over HTTP.
package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/api/dto"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/merchants"
)

// MerchantHandler handles merchant alias HTTP requests.
type MerchantHandler struct {
	svc *merchants.Service
}

// NewMerchantHandler creates a new merchant alias handler.
func NewMerchantHandler(svc *merchants.Service) *MerchantHandler {
	return &MerchantHandler{svc: svc}
}

// Register mounts the routes on the given group.
func (h *MerchantHandler) Register(g *gin.RouterGroup) {
	g.GET("/merchants/aliases", h.List)
	g.POST("/merchants/aliases", h.Create)
	g.PUT("/merchants/aliases/:id", h.Update)
	g.DELETE("/merchants/aliases/:id", h.Delete)
	g.POST("/merchants/aliases/apply", h.Apply)
	g.GET("/merchants/suggest", h.Suggest)
}

type aliasRequest struct {
	Pattern       string `json:"pattern" binding:"required"`
	MatchType     string `json:"match_type"`
	CanonicalName string `json:"canonical_name" binding:"required"`
	Priority      int    `json:"priority"`
}

func (req *aliasRequest) toAlias() *merchants.Alias {
	matchType := merchants.MatchType(req.MatchType)
	if req.MatchType == "" {
		matchType = merchants.MatchContains
	}
	return &merchants.Alias{
		Pattern:       req.Pattern,
		MatchType:     matchType,
		CanonicalName: req.CanonicalName,
		Priority:      req.Priority,
	}
}

// List handles GET /merchants/aliases.
func (h *MerchantHandler) List(c *gin.Context) {
	aliases, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if aliases == nil {
		aliases = []merchants.Alias{}
	}
	c.JSON(http.StatusOK, gin.H{"aliases": aliases})
}

// Create handles POST /merchants/aliases.
func (h *MerchantHandler) Create(c *gin.Context) {
	var req aliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("pattern and canonical_name are required"))
		return
	}

	alias := req.toAlias()
	if err := h.svc.Create(c.Request.Context(), alias); err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, alias)
}

// Update handles PUT /merchants/aliases/:id.
func (h *MerchantHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid alias id"))
		return
	}

	var req aliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("pattern and canonical_name are required"))
		return
	}

	alias := req.toAlias()
	alias.ID = id

	err = h.svc.Update(c.Request.Context(), alias)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("alias"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, alias)
}

// Delete handles DELETE /merchants/aliases/:id.
func (h *MerchantHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid alias id"))
		return
	}

	err = h.svc.Delete(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("alias"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}

// Apply handles POST /merchants/aliases/apply.
func (h *MerchantHandler) Apply(c *gin.Context) {
	result, err := h.svc.Apply(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, result)
}

// Suggest handles GET /merchants/suggest?merchant=...
func (h *MerchantHandler) Suggest(c *gin.Context) {
	merchant := c.Query("merchant")
	if merchant == "" {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("merchant parameter is required"))
		return
	}

	limit := 5
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	suggestions, err := h.svc.Suggest(c.Request.Context(), merchant, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
