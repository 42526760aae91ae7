package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by NewFactory.
const (
	BackendPaddle    = "paddle"
	BackendTesseract = "tesseract"
	BackendGemini    = "gemini"
	BackendStatic    = "static"
)

// Backends lists every known backend name.
var Backends = []string{BackendPaddle, BackendTesseract, BackendGemini, BackendStatic}

// Config selects and configures a backend and its pool.
type Config struct {
	Backend       string
	Workers       int
	Timeout       time.Duration
	MinConfidence float64

	Paddle      PaddleConfig
	Tesseract   TesseractConfig
	Gemini      GeminiConfig
	StaticTexts []string
}

// ValidBackend reports whether name is a known backend.
func ValidBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// NewFactory returns a constructor for the configured backend.
func NewFactory(cfg Config) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendPaddle, "":
		return func() (Engine, error) { return NewPaddleEngine(cfg.Paddle) }, nil
	case BackendTesseract:
		return func() (Engine, error) { return NewTesseractEngine(cfg.Tesseract) }, nil
	case BackendGemini:
		return func() (Engine, error) { return NewGeminiEngine(context.Background(), cfg.Gemini) }, nil
	case BackendStatic:
		texts := append([]string(nil), cfg.StaticTexts...)
		return func() (Engine, error) { return NewStaticEngine(texts...), nil }, nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownBackend, cfg.Backend, strings.Join(Backends, ", "))
	}
}

// Open builds a pool of cfg.Workers engines for the configured backend.
func Open(cfg Config) (*Pool, error) {
	factory, err := NewFactory(cfg)
	if err != nil {
		return nil, err
	}
	return NewPool(factory, PoolConfig{
		Workers:       cfg.Workers,
		Timeout:       cfg.Timeout,
		MinConfidence: cfg.MinConfidence,
	})
}
