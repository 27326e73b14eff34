// Package handler exposes transaction queries and edits over HTTP.
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
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
)

// TransactionHandler handles transaction HTTP requests.
type TransactionHandler struct {
	svc *transactions.Service
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(svc *transactions.Service) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Register mounts the routes on the given group.
func (h *TransactionHandler) Register(g *gin.RouterGroup) {
	g.GET("/transactions", h.List)
	g.GET("/transactions/search", h.Search)
	g.GET("/transactions/stats", h.GetStats)
	g.GET("/transactions/:id", h.Get)
	g.PATCH("/transactions/:id", h.Patch)
	g.DELETE("/transactions/:id", h.Delete)
}

type listResponse struct {
	Transactions []transactions.Transaction `json:"transactions"`
	TotalCount   int                        `json:"total_count"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// List handles GET /transactions with filter query parameters.
func (h *TransactionHandler) List(c *gin.Context) {
	filter := transactions.ListFilter{
		Account:      c.Query("account"),
		Search:       c.Query("q"),
		TagNamespace: c.Query("tag_namespace"),
		TagValue:     c.Query("tag_value"),
		Untagged:     c.Query("untagged") == "true",
		Limit:        intQuery(c, "limit", 100),
		Offset:       intQuery(c, "offset", 0),
	}

	var err error
	if filter.DateFrom, err = dateQuery(c, "from"); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid from date"))
		return
	}
	if filter.DateTo, err = dateQuery(c, "to"); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid to date"))
		return
	}
	if v := c.Query("min_cents"); v != "" {
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid min_cents"))
			return
		}
		filter.MinCents = &cents
	}
	if v := c.Query("max_cents"); v != "" {
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid max_cents"))
			return
		}
		filter.MaxCents = &cents
	}
	if v := c.Query("is_transfer"); v != "" {
		isTransfer := v == "true"
		filter.IsTransfer = &isTransfer
	}

	txns, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	if txns == nil {
		txns = []transactions.Transaction{}
	}
	c.JSON(http.StatusOK, listResponse{
		Transactions: txns,
		TotalCount:   total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

// Get handles GET /transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}

	txn, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("transaction"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, txn)
}

// Patch handles PATCH /transactions/:id.
func (h *TransactionHandler) Patch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}

	var patch transactions.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if patch.Description != nil && *patch.Description == "" {
		c.JSON(http.StatusBadRequest, dto.ValidationError("description cannot be empty"))
		return
	}

	txn, err := h.svc.Patch(c.Request.Context(), id, patch)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("transaction"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, txn)
}

// Delete handles DELETE /transactions/:id.
func (h *TransactionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid transaction id"))
		return
	}

	err = h.svc.Delete(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("transaction"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.Status(http.StatusNoContent)
}

// Search handles GET /transactions/search?q=...
func (h *TransactionHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("q parameter is required"))
		return
	}

	txns, err := h.svc.Search(c.Request.Context(), query, intQuery(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if txns == nil {
		txns = []transactions.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// GetStats handles GET /transactions/stats?from=...&to=...
func (h *TransactionHandler) GetStats(c *gin.Context) {
	var from, to time.Time
	if p, err := dateQuery(c, "from"); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid from date"))
		return
	} else if p != nil {
		from = *p
	}
	if p, err := dateQuery(c, "to"); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid to date"))
		return
	} else if p != nil {
		to = *p
	}

	stats, err := h.svc.Stats(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, stats)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func dateQuery(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
