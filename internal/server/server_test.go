package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/jobs"
	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/pipeline"
)

func testSettings() *config.Settings {
	return &config.Settings{
		RateLimitPerMinute: 60,
		MaxConcurrent:      1,
		MaxQueueDepth:      2,
		MaxFileSizeMB:      1,
	}
}

func newTestServer(t *testing.T, settings *config.Settings) http.Handler {
	t.Helper()
	manager := jobs.NewManager(settings.MaxConcurrent, settings.MaxQueueDepth)
	t.Cleanup(manager.Shutdown)
	return New(settings, pipeline.New(settings), manager).Router()
}

func TestHealthOpenWithoutAuth(t *testing.T) {
	settings := testSettings()
	settings.APIKeys = []string{"secret"}
	h := newTestServer(t, settings)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestAPIKeyRequired(t *testing.T) {
	settings := testSettings()
	settings.APIKeys = []string{"secret"}
	h := newTestServer(t, settings)

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "ApiKey", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
		req.Header.Set("X-API-Key", "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models?api_key=secret", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthDisabledWithoutKeys(t *testing.T) {
	h := newTestServer(t, testSettings())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModelsAndEngines(t *testing.T) {
	h := newTestServer(t, testSettings())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var models []config.ModelConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.NotEmpty(t, models)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/engines", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	l := newRateLimiter(3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, ok := l.allow("caller", now.Add(time.Duration(i)*time.Second)); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	retryAfter, ok := l.allow("caller", now.Add(3*time.Second))
	require.False(t, ok, "fourth request within the window must be rejected")
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)

	// Another caller has an independent window.
	_, ok = l.allow("other", now.Add(3*time.Second))
	assert.True(t, ok)

	// After the window slides past the oldest request, space frees up.
	_, ok = l.allow("caller", now.Add(61*time.Second))
	assert.True(t, ok)
}

func TestRateLimitResponse(t *testing.T) {
	settings := testSettings()
	settings.RateLimitPerMinute = 2
	h := newTestServer(t, settings)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestJobNotFound(t *testing.T) {
	h := newTestServer(t, testSettings())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/ffffffff-0000-0000-0000-000000000000", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	h := newTestServer(t, testSettings())

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty exam reports findings", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(`{"exam_info": {}, "questions": []}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var result struct {
			Valid       bool `json:"is_valid"`
			TotalErrors int  `json:"total_errors"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.Valid)
		assert.Greater(t, result.TotalErrors, 0)
	})
}

func multipartUpload(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	if contentType != "" {
		hdr["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadGuards(t *testing.T) {
	h := newTestServer(t, testSettings())

	t.Run("missing file field", func(t *testing.T) {
		body, ct := multipartUpload(t, "document", "a.pdf", "application/pdf", []byte("%PDF-1.7 data"))
		req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		body, ct := multipartUpload(t, "file", "a.docx", "application/msword", []byte("%PDF-1.7 data"))
		req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("not a pdf", func(t *testing.T) {
		body, ct := multipartUpload(t, "file", "a.pdf", "application/pdf", []byte("just some text"))
		req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized declared length", func(t *testing.T) {
		body, ct := multipartUpload(t, "file", "a.pdf", "application/pdf", []byte("%PDF-1.7 data"))
		req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
		req.Header.Set("Content-Type", ct)
		req.ContentLength = 2 << 20
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("malformed multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader("not multipart at all"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaxonomyStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"input", model.Errf(model.KindInput, "bad input"), http.StatusBadRequest},
		{"config", model.Errf(model.KindConfig, "bad spec"), http.StatusBadRequest},
		{"queue full", model.Errf(model.KindQueueFull, "queue full"), http.StatusTooManyRequests},
		{"quota", model.Errf(model.KindLLMQuota, "quota exhausted"), http.StatusServiceUnavailable},
		{"transport", model.Errf(model.KindLLMTransport, "connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeTaxonomyError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			}
		})
	}
}
