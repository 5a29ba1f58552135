package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/card-ocr/api/handlers"
	"github.com/feichai0017/card-ocr/api/middleware"
	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/internal/models"
	"github.com/feichai0017/card-ocr/internal/service/session"
	"github.com/feichai0017/card-ocr/internal/utils/validator"
	"github.com/feichai0017/card-ocr/pkg/converters"
	"github.com/feichai0017/card-ocr/pkg/logger"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfHeader  = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger()
	v := validator.NewImageValidator(log, nil)
	store := session.NewManager(ocr.NewSimulated(0), v, log, session.ManagerConfig{})

	r := gin.New()
	SetupRoutes(r, handlers.NewHandlers(store, v, log), Options{Logger: log})
	return &testServer{t: t, router: r}
}

func (s *testServer) do(method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession() string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(s.t, http.StatusCreated, w.Code)
	return decodeSession(s.t, w).Session.ID
}

func (s *testServer) upload(id, filename string, data []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = part.Write(data)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())
	return s.do(http.MethodPost, "/api/v1/sessions/"+id+"/file", body, mw.FormDataContentType())
}

func (s *testServer) selectCardType(id, cardType string) *httptest.ResponseRecorder {
	s.t.Helper()
	body := bytes.NewBufferString(`{"cardType":"` + cardType + `"}`)
	return s.do(http.MethodPut, "/api/v1/sessions/"+id+"/card-type", body, "application/json")
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) handlers.SessionResponse {
	t.Helper()
	var resp handlers.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = s.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Card OCR")
}

func TestListCardTypes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/card-types", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CardTypes []models.CardTypeInfo `json:"cardTypes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.CardTypes, 3)
	assert.Equal(t, models.CardTypeIDCard, resp.CardTypes[0].ID)
	assert.Equal(t, models.CardTypePassport, resp.CardTypes[1].ID)
	assert.Equal(t, models.CardTypeCreditCard, resp.CardTypes[2].ID)
}

func TestCompleteExtractionFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()

	w := s.upload(id, "passport.png", pngHeader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSession(t, w).Session
	require.NotNil(t, snap.File)
	assert.Equal(t, "passport.png", snap.File.Name)
	assert.Equal(t, "image/png", snap.File.MimeType)
	assert.Equal(t, int64(len(pngHeader)), snap.File.Size)

	w = s.selectCardType(id, "passport")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusReady, decodeSession(t, w).Session.Status)

	w = s.do(http.MethodPost, "/api/v1/sessions/"+id+"/process?wait=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	require.NotNil(t, resp.Notice)
	assert.Equal(t, "OCR Complete!", resp.Notice.Title)
	assert.Equal(t, models.StatusCompleted, resp.Session.Status)
	assert.Contains(t, resp.Session.ExtractedText, "Sample OCR Results for passport:")

	w = s.do(http.MethodGet, "/api/v1/sessions/"+id+"/result", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, resp.Session.ExtractedText, result.Text)

	w = s.do(http.MethodGet, "/api/v1/sessions/"+id+"/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ocr-results.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, result.Text, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/sessions/"+id+"/download?format=json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="ocr-results.json"`, w.Header().Get("Content-Disposition"))
	var doc converters.ResultDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, id, doc.SessionID)
	assert.Equal(t, "JOHN SMITH", doc.Fields["Name"])
	assert.Equal(t, "passport.png", doc.Metadata.FileName)

	// clearing drops the file, card type and text
	w = s.do(http.MethodDelete, "/api/v1/sessions/"+id+"/file", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSession(t, w).Session
	assert.Nil(t, snap.File)
	assert.Empty(t, snap.CardType)
	assert.Empty(t, snap.ExtractedText)
	assert.Equal(t, models.StatusIdle, snap.Status)
}

func TestProcessAcceptedWithoutWait(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()
	require.Equal(t, http.StatusOK, s.upload(id, "card.png", pngHeader).Code)
	require.Equal(t, http.StatusOK, s.selectCardType(id, "id_card").Code)

	w := s.do(http.MethodPost, "/api/v1/sessions/"+id+"/process", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Nil(t, decodeSession(t, w).Notice)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		data       []byte
		wantStatus int
		wantCode   string
		wantTitle  string
	}{
		{
			name:       "pdf rejected by content",
			filename:   "scan.png",
			data:       pdfHeader,
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "INVALID_FILE_TYPE",
			wantTitle:  "Invalid file type",
		},
		{
			name:       "image over the limit",
			filename:   "big.png",
			data:       append(append([]byte{}, pngHeader...), make([]byte, 10*1024*1024)...),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
			wantTitle:  "File too large",
		},
		{
			// exceeds the request body limit before the form is parsed
			name:       "12MB jpeg",
			filename:   "scan.jpg",
			data:       append(append([]byte{}, jpegHeader...), make([]byte, 12*1024*1024)...),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
			wantTitle:  "File too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			id := s.createSession()

			w := s.upload(id, tt.filename, tt.data)
			assert.Equal(t, tt.wantStatus, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			require.NotNil(t, resp.Notice)
			assert.Equal(t, tt.wantTitle, resp.Notice.Title)
			assert.Equal(t, models.NoticeDestructive, resp.Notice.Variant)

			w = s.do(http.MethodGet, "/api/v1/sessions/"+id, nil, "")
			assert.Nil(t, decodeSession(t, w).Session.File)
		})
	}
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()

	w := s.do(http.MethodPost, "/api/v1/sessions/"+id+"/file", bytes.NewBufferString("nothing"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, w).Code)
}

func TestProcessMissingRequirements(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()
	require.Equal(t, http.StatusOK, s.upload(id, "card.png", pngHeader).Code)

	w := s.do(http.MethodPost, "/api/v1/sessions/"+id+"/process", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "MISSING_REQUIREMENTS", resp.Code)
	require.NotNil(t, resp.Notice)
	assert.Equal(t, "Missing requirements", resp.Notice.Title)
	assert.Equal(t, "Please select a file and card type before processing.", resp.Notice.Description)
}

func TestSelectCardTypeErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()

	w := s.selectCardType(id, "library_card")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_CARD_TYPE", decodeError(t, w).Code)

	w = s.do(http.MethodPut, "/api/v1/sessions/"+id+"/card-type", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, w).Code)
}

func TestDownloadWithoutResult(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()

	w := s.do(http.MethodGet, "/api/v1/sessions/"+id+"/download", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_RESULT", decodeError(t, w).Code)
}

func TestUnknownAndDeletedSessions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/sessions/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Code)

	id := s.createSession()
	w = s.do(http.MethodDelete, "/api/v1/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/sessions/"+id+"/result", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/card-types", strings.NewReader(""))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
}
