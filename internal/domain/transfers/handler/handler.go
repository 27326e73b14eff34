// Package handler exposes transfer suggestions and marking over HTTP.
package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/api/dto"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transfers"
)

// TransferHandler handles transfer HTTP requests.
type TransferHandler struct {
	svc *transfers.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(svc *transfers.Service) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Register mounts the routes on the given group.
func (h *TransferHandler) Register(g *gin.RouterGroup) {
	g.GET("/transfers/suggestions", h.Suggestions)
	g.GET("/transfers/stats", h.GetStats)
	g.POST("/transfers/mark", h.Mark)
	g.POST("/transfers/unmark/:id", h.Unmark)
}

// Suggestions handles GET /transfers/suggestions.
func (h *TransferHandler) Suggestions(c *gin.Context) {
	var from, to *time.Time
	for name, dst := range map[string]**time.Time{"from": &from, "to": &to} {
		if v := c.Query(name); v != "" {
			t, err := time.Parse(time.DateOnly, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid "+name+" date"))
				return
			}
			*dst = &t
		}
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	suggestions, err := h.svc.Suggestions(c.Request.Context(), from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if suggestions == nil {
		suggestions = []transfers.Suggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type markRequest struct {
	TransactionID       string `json:"transaction_id" binding:"required"`
	LinkedTransactionID string `json:"linked_transaction_id" binding:"required"`
}

// Mark handles POST /transfers/mark.
func (h *TransferHandler) Mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("transaction_id and linked_transaction_id are required"))
		return
	}

	aID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction_id"))
		return
	}
	bID, err := uuid.Parse(req.LinkedTransactionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid linked_transaction_id"))
		return
	}
	if aID == bID {
		c.JSON(http.StatusBadRequest, dto.ValidationError("a transaction cannot be its own transfer partner"))
		return
	}

	err = h.svc.Mark(c.Request.Context(), aID, bID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("transaction"))
		return
	}
	if errors.Is(err, transfers.ErrNotTransferPair) {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}

// Unmark handles POST /transfers/unmark/:id.
func (h *TransferHandler) Unmark(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}

	err = h.svc.Unmark(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("transfer"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats handles GET /transfers/stats.
func (h *TransferHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, stats)
}
