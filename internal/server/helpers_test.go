package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/pipeline"
	"github.com/MeKo-Tech/mathocr/internal/testutil"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	debugRoot   string
	poolTimeout time.Duration
	rateLimit   RateLimitConfig
	maxUploadMB int64
	corsOrigin  string
}

// newTestServer wires eng through a one-worker pool and a real pipeline.
func newTestServer(t *testing.T, eng ocr.Engine, opts testOptions) *Server {
	t.Helper()
	pool, err := ocr.NewPool(func() (ocr.Engine, error) { return eng, nil }, ocr.PoolConfig{
		Workers: 1,
		Timeout: opts.poolTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	writer, err := artifacts.NewWriter(opts.debugRoot, "/debug/", artifacts.DefaultStyle())
	require.NoError(t, err)
	p, err := pipeline.NewBuilder(pool).WithArtifacts(writer).Build()
	require.NoError(t, err)

	if opts.corsOrigin == "" {
		opts.corsOrigin = "*"
	}
	s, err := NewServer(Config{
		CORSOrigin:     opts.corsOrigin,
		MaxUploadMB:    opts.maxUploadMB,
		DebugRoot:      opts.debugRoot,
		DebugURLPrefix: "/debug/",
		EngineName:     pool.Name(),
		Version:        "test",
		RateLimit:      opts.rateLimit,
	}, p)
	require.NoError(t, err)
	return s
}

// multipartBody builds a form with data under field.
func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, field, "imagen.png", data)
	req := httptest.NewRequest(http.MethodPost, "/detectar", body)
	req.Header.Set("Content-Type", ct)
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.GenerateTextImage(testutil.DefaultTestImageConfig()))
}
