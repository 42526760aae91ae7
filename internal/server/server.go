// Package server exposes the arithmetic OCR pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Processor runs the pipeline on raw upload bytes.
type Processor interface {
	ProcessBytes(ctx context.Context, data []byte) (*pipeline.Result, error)
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	// Timeout bounds a single pipeline run. Zero leaves only the engine
	// pool's own deadline.
	Timeout time.Duration
	// DebugRoot is served under DebugURLPrefix when non-empty.
	DebugRoot      string
	DebugURLPrefix string
	// EngineName is reported by the health endpoint and the index page.
	EngineName string
	Version    string
	RateLimit  RateLimitConfig
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	cfg         Config
	proc        Processor
	rateLimiter *RateLimiter
}

// NewServer creates a server that hands uploads to proc.
func NewServer(cfg Config, proc Processor) (*Server, error) {
	if proc == nil {
		return nil, errors.New("server needs a processor")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.DebugURLPrefix == "" {
		cfg.DebugURLPrefix = "/debug/"
	}
	if !strings.HasSuffix(cfg.DebugURLPrefix, "/") {
		cfg.DebugURLPrefix += "/"
	}
	s := &Server{cfg: cfg, proc: proc}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.corsMiddleware("/", s.indexHandler))
	mux.Handle("/static/", s.corsMiddleware("/static/", staticHandler().ServeHTTP))
	mux.HandleFunc("/health", s.corsMiddleware("/health", s.healthHandler))
	mux.HandleFunc("/detectar", s.corsMiddleware("/detectar", s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/ws/detectar", s.corsMiddleware("/ws/detectar", s.rateLimitMiddleware(s.webSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
	if s.cfg.DebugRoot != "" {
		mux.Handle(s.cfg.DebugURLPrefix, s.corsMiddleware(s.cfg.DebugURLPrefix, debugHandler(s.cfg.DebugURLPrefix, s.cfg.DebugRoot).ServeHTTP))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) maxUploadBytes() int64 {
	return s.cfg.MaxUploadMB * 1024 * 1024
}

// runContext derives the per-request pipeline context.
func (s *Server) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(parent, s.cfg.Timeout)
	}
	return context.WithCancel(parent)
}
