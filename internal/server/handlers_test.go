package server

import (
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewServer_RequiresProcessor(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{})
	h := s.Handler()

	tests := []struct {
		method string
		status int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "healthy", resp.Status)
			assert.Equal(t, "static", resp.Engine)
			assert.Equal(t, "test", resp.Version)
			assert.NotEmpty(t, resp.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestDetect_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		wantExpr string
		wantVal  any
	}{
		{"addition", []string{"2+2"}, "2+2", 4.0},
		{"x between detections", []string{"6", "x7"}, "6*7", 42.0},
		{"division by zero", []string{"8/0"}, "8/0", "Error en evaluación"},
		{"no operator", []string{"hello"}, "hello", nil},
		{"no detections", nil, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, ocr.NewStaticEngine(tt.texts...), testOptions{debugRoot: t.TempDir()})
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, uploadRequest(t, "file", pngBytes(t)))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantExpr, body["expresion"])
			assert.Equal(t, tt.wantVal, body["resultado"])
			assert.Equal(t, "✅ Procesado correctamente", body["mensaje_db"])
			assert.True(t, strings.HasPrefix(body["annotated_url"].(string), "/debug/"))
		})
	}
}

func TestDetect_AcceptsImageField(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine("1+2"), testOptions{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "image", pngBytes(t)))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, 3.0, body["resultado"])
	assert.Equal(t, "", body["annotated_url"])
}

func TestDetect_MalformedUploadWritesNothing(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, ocr.NewStaticEngine("2+2"), testOptions{debugRoot: root})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "file", []byte("definitely not an image")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"detail": detailInvalidImage}, decodeBody(t, w))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDetect_MissingFile(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, detailNoFile, decodeBody(t, w)["detail"])
}

func TestDetect_NotMultipart(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{})
	req := httptest.NewRequest(http.MethodPost, "/detectar", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, detailBadForm, decodeBody(t, w)["detail"])
}

func TestDetect_TimeoutIsClientError(t *testing.T) {
	eng := ocr.NewStaticEngine("2+2")
	eng.Delay = time.Second
	s := newTestServer(t, eng, testOptions{poolTimeout: 20 * time.Millisecond})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "file", pngBytes(t)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, detailTimeout, decodeBody(t, w)["detail"])
}

func TestDetect_EngineFailureIsServerError(t *testing.T) {
	eng := ocr.NewStaticEngine()
	eng.Err = errors.New("model exploded")
	s := newTestServer(t, eng, testOptions{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "file", pngBytes(t)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, detailFailed, decodeBody(t, w)["detail"])
}

func TestDetect_TooLarge(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{maxUploadMB: 1})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "file", make([]byte, 2*1024*1024)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, detailTooLarge, decodeBody(t, w)["detail"])
}

func TestDetect_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/detectar", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDebugFilesServed(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, ocr.NewStaticEngine("3*3"), testOptions{debugRoot: root})
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", pngBytes(t)))
	require.Equal(t, http.StatusOK, w.Code)
	url := decodeBody(t, w)["annotated_url"].(string)
	require.NotEmpty(t, url)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	dir := filepath.Dir(strings.TrimPrefix(url, "/debug/"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/"+dir+"/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebugFilesServed_EscapedCropName(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{debugRoot: root})

	w, err := artifacts.NewWriter(root, "/debug/", artifacts.DefaultStyle())
	require.NoError(t, err)
	rec, err := w.Begin(time.Now())
	require.NoError(t, err)
	name, err := rec.WriteCrop(0, "50%#?", image.NewGray(image.Rect(0, 0, 3, 3)))
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, rec.URL(name), nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
}

func TestIndexAndStatic(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{})
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `src="/static/js/app.js"`)
	assert.Contains(t, w.Body.String(), "motor static")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/js/app.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `fetch("/detectar"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/js/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine("1+1"), testOptions{})
	h := s.Handler()
	h.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, "file", pngBytes(t)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mathocr_http_requests_total")
	assert.Contains(t, w.Body.String(), `mathocr_detect_requests_total{source="http",status="ok"}`)
}
