package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxwell-labs/maxwells-wallet/internal/api/dto"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer"
)

type stubSessionRepo struct {
	sessions map[uuid.UUID]*importer.Session
}

func (s *stubSessionRepo) Create(ctx context.Context, session *importer.Session) error {
	return nil
}

func (s *stubSessionRepo) List(ctx context.Context, limit, offset int) ([]importer.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*importer.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSessionRepo) MarkRolledBack(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

func newTestRouter(t *testing.T, sessions *stubSessionRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := importer.NewService(sessions, nil, nil, nil, nil, nil, nil, nil,
		importer.Config{}, slog.Default())

	router := gin.New()
	NewImportHandler(svc, 0).Register(router.Group("/api/v1"))
	return router
}

func uploadRequest(t *testing.T, target, fileName string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.APIError {
	t.Helper()
	var apiErr dto.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestSessionNotFoundMessage(t *testing.T) {
	router := newTestRouter(t, &stubSessionRepo{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/import/sessions/"+uuid.NewString(), nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	assert.Equal(t, "import session not found", apiErr.Message)
}

func TestSessionFileWithoutArchive(t *testing.T) {
	id := uuid.New()
	sessions := &stubSessionRepo{sessions: map[uuid.UUID]*importer.Session{
		id: {ID: id, FileName: "checking.csv", Status: importer.StatusCompleted},
	}}
	router := newTestRouter(t, sessions)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/import/sessions/"+id.String()+"/file", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "no archived file for this session", apiErr.Message)
}

func TestImportUndetectableFileIsBadRequest(t *testing.T) {
	router := newTestRouter(t, &stubSessionRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/v1/import", "noise.csv", []byte{0x00, 0x01, 0x02}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, dto.ErrCodeValidation, apiErr.Code)
}

func TestPreviewUndetectableFileIsBadRequest(t *testing.T) {
	router := newTestRouter(t, &stubSessionRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/v1/import/preview", "noise.csv", []byte{0x00, 0x01, 0x02}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
