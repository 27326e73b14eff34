package handler

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/api/dto"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer/parser"
)

// ImportHandler exposes the import pipeline over HTTP.
type ImportHandler struct {
	service   *importer.Service
	maxUpload int64
}

// NewImportHandler creates a new import handler. maxUpload caps the accepted
// file size in bytes; zero falls back to 10 MiB.
func NewImportHandler(service *importer.Service, maxUpload int64) *ImportHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &ImportHandler{service: service, maxUpload: maxUpload}
}

// Register mounts the import routes.
func (h *ImportHandler) Register(r *gin.RouterGroup) {
	r.POST("/import/analyze", h.Analyze)
	r.POST("/import/detect", h.Detect)
	r.POST("/import/preview", h.Preview)
	r.POST("/import", h.Import)
	r.GET("/import/sessions", h.Sessions)
	r.GET("/import/sessions/:id", h.Session)
	r.GET("/import/sessions/:id/file", h.SessionFile)
	r.POST("/import/sessions/:id/rollback", h.Rollback)
}

// readUpload pulls the multipart "file" part plus its name. A JSON error has
// already been written when ok is false.
func (h *ImportHandler) readUpload(c *gin.Context) (data []byte, fileName string, ok bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("multipart field 'file' is required"))
		return nil, "", false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("failed to read uploaded file"))
		return nil, "", false
	}
	if int64(len(data)) > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, dto.BadRequestError("file exceeds the upload size limit"))
		return nil, "", false
	}
	return data, header.Filename, true
}

// csvOverride builds an explicit column mapping from form fields, when any
// mapping field is present. Column indices are 0-based.
func csvOverride(c *gin.Context) (*parser.CSVConfig, error) {
	if c.PostForm("date_col") == "" && c.PostForm("amount_col") == "" &&
		c.PostForm("debit_col") == "" && c.PostForm("desc_col") == "" {
		return nil, nil
	}

	cfg := parser.DefaultCSVConfig()
	intField := func(name string, dst *int) error {
		v := c.PostForm(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(name + " must be an integer")
		}
		*dst = n
		return nil
	}

	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"date_col", &cfg.DateCol},
		{"amount_col", &cfg.AmountCol},
		{"debit_col", &cfg.DebitCol},
		{"credit_col", &cfg.CreditCol},
		{"desc_col", &cfg.DescCol},
		{"ref_col", &cfg.RefCol},
		{"category_col", &cfg.CategoryCol},
		{"skip_rows", &cfg.SkipRows},
		{"skip_footer_rows", &cfg.SkipFooterRows},
	} {
		if err := intField(f.name, f.dst); err != nil {
			return nil, err
		}
	}

	if v := c.PostForm("delimiter"); v != "" {
		cfg.Delimiter = rune(v[0])
	}
	if v := c.PostForm("date_layout"); v != "" {
		cfg.DateLayout = v
	}
	if v := c.PostForm("has_header"); v != "" {
		hasHeader, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("has_header must be a boolean")
		}
		cfg.HasHeader = hasHeader
	}
	return &cfg, nil
}

func (h *ImportHandler) request(c *gin.Context) (importer.Request, bool) {
	data, fileName, ok := h.readUpload(c)
	if !ok {
		return importer.Request{}, false
	}

	csvCfg, err := csvOverride(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return importer.Request{}, false
	}

	return importer.Request{
		FileName: fileName,
		Data:     data,
		Account:  c.PostForm("account"),
		Format:   c.PostForm("format"),
		CSV:      csvCfg,
	}, true
}

// Analyze reports the uploaded file's structure: headers, sample rows and a
// layout fingerprint, without proposing column roles.
func (h *ImportHandler) Analyze(c *gin.Context) {
	data, fileName, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.service.Analyze(c.Request.Context(), fileName, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, result)
}

// Detect proposes an import configuration for the uploaded file.
func (h *ImportHandler) Detect(c *gin.Context) {
	data, fileName, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.service.Detect(c.Request.Context(), fileName, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, result)
}

// Preview dry-runs the import and reports what it would do.
func (h *ImportHandler) Preview(c *gin.Context) {
	req, ok := h.request(c)
	if !ok {
		return
	}

	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Import finalizes an import.
func (h *ImportHandler) Import(c *gin.Context) {
	req, ok := h.request(c)
	if !ok {
		return
	}

	result, err := h.service.Import(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Sessions lists past import sessions.
func (h *ImportHandler) Sessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sessions, err := h.service.Sessions(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if sessions == nil {
		sessions = []importer.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Session returns one import session.
func (h *ImportHandler) Session(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid session id"))
		return
	}

	session, err := h.service.Session(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, dto.NotFoundError("import session"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, session)
}

// SessionFile streams the archived statement the session was imported from.
func (h *ImportHandler) SessionFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid session id"))
		return
	}

	rc, session, err := h.service.OpenArchive(c.Request.Context(), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, dto.NotFoundError("import session"))
		return
	case errors.Is(err, importer.ErrNoArchive):
		c.JSON(http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, "no archived file for this session"))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+session.FileName+`"`)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, rc); err != nil {
		c.Abort()
	}
}

// Rollback deletes everything a session imported.
func (h *ImportHandler) Rollback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid session id"))
		return
	}

	result, err := h.service.Rollback(c.Request.Context(), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, dto.NotFoundError("import session"))
	case errors.Is(err, importer.ErrAlreadyRolledBack):
		c.JSON(http.StatusConflict, dto.NewAPIError("conflict", "session was already rolled back"))
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.InternalError())
	default:
		c.JSON(http.StatusOK, result)
	}
}
