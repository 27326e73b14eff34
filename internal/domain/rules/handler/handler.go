// Package handler exposes tag rule management over HTTP.
package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/api/dto"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/rules"
)

// RuleHandler handles rule HTTP requests.
type RuleHandler struct {
	svc *rules.Service
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(svc *rules.Service) *RuleHandler {
	return &RuleHandler{svc: svc}
}

// Register mounts the routes on the given group.
func (h *RuleHandler) Register(g *gin.RouterGroup) {
	g.GET("/rules", h.List)
	g.POST("/rules", h.Create)
	g.GET("/rules/:id", h.Get)
	g.PUT("/rules/:id", h.Update)
	g.DELETE("/rules/:id", h.Delete)
	g.POST("/rules/test", h.Test)
	g.POST("/rules/:id/test", h.TestRule)
	g.POST("/rules/apply", h.Apply)
}

type ruleRequest struct {
	Name               string  `json:"name" binding:"required"`
	MerchantPattern    *string `json:"merchant_pattern,omitempty"`
	DescriptionPattern *string `json:"description_pattern,omitempty"`
	AmountMinCents     *int64  `json:"amount_min_cents,omitempty"`
	AmountMaxCents     *int64  `json:"amount_max_cents,omitempty"`
	Account            *string `json:"account,omitempty"`
	MatchAll           *bool   `json:"match_all,omitempty"`
	Priority           int     `json:"priority"`
	Enabled            *bool   `json:"enabled,omitempty"`
	TagID              string  `json:"tag_id" binding:"required"`
}

func (req *ruleRequest) toRule() (*rules.Rule, error) {
	tagID, err := uuid.Parse(req.TagID)
	if err != nil {
		return nil, errors.New("invalid tag_id")
	}

	rule := &rules.Rule{
		Name:               req.Name,
		MerchantPattern:    req.MerchantPattern,
		DescriptionPattern: req.DescriptionPattern,
		AmountMinCents:     req.AmountMinCents,
		AmountMaxCents:     req.AmountMaxCents,
		Account:            req.Account,
		MatchAll:           true,
		Priority:           req.Priority,
		Enabled:            true,
		TagID:              tagID,
	}
	if req.MatchAll != nil {
		rule.MatchAll = *req.MatchAll
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	return rule, nil
}

// List handles GET /rules.
func (h *RuleHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": list})
}

// Get handles GET /rules/:id.
func (h *RuleHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid rule id"))
		return
	}

	rule, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("rule"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Create handles POST /rules.
func (h *RuleHandler) Create(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("name and tag_id are required"))
		return
	}

	rule, err := req.toRule()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	err = h.svc.Create(c.Request.Context(), rule)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("tag"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// Update handles PUT /rules/:id.
func (h *RuleHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid rule id"))
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("name and tag_id are required"))
		return
	}

	rule, err := req.toRule()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	rule.ID = id

	err = h.svc.Update(c.Request.Context(), rule)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("rule"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Delete handles DELETE /rules/:id.
func (h *RuleHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid rule id"))
		return
	}

	err = h.svc.Delete(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("rule"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}

// Test handles POST /rules/test with a sample transaction.
func (h *RuleHandler) Test(c *gin.Context) {
	var sample rules.Sample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	result, err := h.svc.Test(c.Request.Context(), sample)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, result)
}

// TestRule handles POST /rules/:id/test, previewing one rule against stored
// transactions without assigning tags.
func (h *RuleHandler) TestRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid rule id"))
		return
	}

	result, err := h.svc.TestRule(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("rule"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, result)
}

// Apply handles POST /rules/apply.
func (h *RuleHandler) Apply(c *gin.Context) {
	var opts rules.ApplyOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	result, err := h.svc.Apply(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, result)
}
