// Package handler exposes tag CRUD and tag assignment over HTTP.
package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/api/dto"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/tags"
)

// TagHandler handles tag HTTP requests.
type TagHandler struct {
	svc *tags.Service
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(svc *tags.Service) *TagHandler {
	return &TagHandler{svc: svc}
}

// Register mounts the routes on the given group.
func (h *TagHandler) Register(g *gin.RouterGroup) {
	g.GET("/tags", h.List)
	g.POST("/tags", h.Create)
	g.GET("/tags/:id", h.Get)
	g.PUT("/tags/:id", h.Update)
	g.DELETE("/tags/:id", h.Delete)
	g.GET("/transactions/:id/tags", h.Assignments)
	g.POST("/transactions/:id/tags", h.Assign)
	g.DELETE("/transactions/:id/tags/:tagID", h.Unassign)
}

// List handles GET /tags?namespace=bucket.
func (h *TagHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	if list == nil {
		list = []tags.Tag{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": list})
}

type createTagRequest struct {
	Namespace string `json:"namespace" binding:"required"`
	Value     string `json:"value" binding:"required"`
}

// Create handles POST /tags.
func (h *TagHandler) Create(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("namespace and value are required"))
		return
	}

	tag, err := h.svc.Create(c.Request.Context(), req.Namespace, req.Value)
	if errors.Is(err, tags.ErrDuplicateTag) {
		c.JSON(http.StatusConflict, dto.NewAPIError("conflict", "tag already exists"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// Get handles GET /tags/:id.
func (h *TagHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid tag id"))
		return
	}

	tag, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("tag"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, tag)
}

type updateTagRequest struct {
	Value string `json:"value" binding:"required"`
}

// Update handles PUT /tags/:id, renaming the tag within its namespace.
func (h *TagHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid tag id"))
		return
	}

	var req updateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("value is required"))
		return
	}

	tag, err := h.svc.Rename(c.Request.Context(), id, req.Value)
	if errors.Is(err, tags.ErrDuplicateTag) {
		c.JSON(http.StatusConflict, dto.NewAPIError("conflict", "tag already exists"))
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("tag"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, tag)
}

// Delete handles DELETE /tags/:id.
func (h *TagHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid tag id"))
		return
	}

	err = h.svc.Delete(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("tag"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}

// Assignments handles GET /transactions/:id/tags.
func (h *TagHandler) Assignments(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}

	list, err := h.svc.Assignments(c.Request.Context(), txnID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if list == nil {
		list = []tags.Assignment{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": list})
}

type assignRequest struct {
	Namespace   string `json:"namespace" binding:"required"`
	Value       string `json:"value" binding:"required"`
	AmountCents *int64 `json:"amount_cents,omitempty"`
}

// Assign handles POST /transactions/:id/tags.
func (h *TagHandler) Assign(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("namespace and value are required"))
		return
	}

	tag, err := h.svc.Assign(c.Request.Context(), txnID, req.Namespace, req.Value, req.AmountCents)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("transaction"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// Unassign handles DELETE /transactions/:id/tags/:tagID.
func (h *TagHandler) Unassign(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}
	tagID, err := uuid.Parse(c.Param("tagID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid tag id"))
		return
	}

	err = h.svc.Unassign(c.Request.Context(), txnID, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("tag assignment"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}
