// Package support holds the step definitions for the API feature tests.
package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/pipeline"
	"github.com/MeKo-Tech/mathocr/internal/server"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Engine      *ocr.StaticEngine
	PoolTimeout time.Duration
	Debug       bool
	DebugRoot   string

	pool   *ocr.Pool
	server *httptest.Server

	LastStatus int
	LastBody   map[string]any
}

// NewTestContext creates a scenario context with a scratch debug root.
func NewTestContext() (*TestContext, error) {
	root, err := os.MkdirTemp("", "mathocr-debug-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create debug root: %w", err)
	}
	return &TestContext{
		Engine:    ocr.NewStaticEngine(),
		Debug:     true,
		DebugRoot: root,
	}, nil
}

// StartServer wires the static engine through a pool, a pipeline and the
// HTTP server.
func (testCtx *TestContext) StartServer() error {
	if testCtx.server != nil {
		return nil
	}
	eng := testCtx.Engine
	pool, err := ocr.NewPool(func() (ocr.Engine, error) { return eng, nil }, ocr.PoolConfig{
		Workers: 1,
		Timeout: testCtx.PoolTimeout,
	})
	if err != nil {
		return err
	}
	testCtx.pool = pool

	root := ""
	if testCtx.Debug {
		root = testCtx.DebugRoot
	}
	writer, err := artifacts.NewWriter(root, "/debug/", artifacts.DefaultStyle())
	if err != nil {
		return err
	}
	p, err := pipeline.NewBuilder(pool).WithArtifacts(writer).Build()
	if err != nil {
		return err
	}
	s, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		DebugRoot:      root,
		DebugURLPrefix: "/debug/",
		EngineName:     pool.Name(),
		Version:        "integration",
	}, p)
	if err != nil {
		return err
	}
	testCtx.server = httptest.NewServer(s.Handler())
	return nil
}

// URL returns the base URL of the running server.
func (testCtx *TestContext) URL() string {
	return testCtx.server.URL
}

// Cleanup stops the server and removes the debug root.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.server != nil {
		testCtx.server.Close()
	}
	if testCtx.pool != nil {
		_ = testCtx.pool.Close()
	}
	return os.RemoveAll(testCtx.DebugRoot)
}
