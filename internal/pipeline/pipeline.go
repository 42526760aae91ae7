// Package pipeline turns an image of a handwritten or printed arithmetic
// expression into its evaluated result, writing debug artifacts on the way.
package pipeline

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/utils"
)

// Detector is the text detection capability the pipeline depends on.
// *ocr.Pool satisfies it.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]ocr.Detection, error)
}

// Config holds pipeline options.
type Config struct {
	// MaxPixels bounds decoded image area; 0 disables the check.
	MaxPixels int
	// IncludeDetections adds per-detection details to results.
	IncludeDetections bool
}

// DefaultConfig returns the default pipeline options.
func DefaultConfig() Config {
	return Config{MaxPixels: utils.DefaultMaxPixels}
}

// Pipeline runs preprocessing, detection, artifact writing and evaluation
// for one image at a time. It is safe for concurrent use when its Detector
// is.
type Pipeline struct {
	cfg      Config
	detector Detector
	writer   *artifacts.Writer
	now      func() time.Time
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	detector Detector
	writer   *artifacts.Writer
	now      func() time.Time
}

// NewBuilder creates a builder with default options around detector.
func NewBuilder(detector Detector) *Builder {
	return &Builder{cfg: DefaultConfig(), detector: detector, now: time.Now}
}

// WithArtifacts sets the debug artifact writer. A nil or disabled writer
// turns artifact output off.
func (b *Builder) WithArtifacts(w *artifacts.Writer) *Builder {
	b.writer = w
	return b
}

// WithMaxPixels overrides the decoded image area limit.
func (b *Builder) WithMaxPixels(n int) *Builder {
	b.cfg.MaxPixels = n
	return b
}

// WithDetections toggles per-detection details in results.
func (b *Builder) WithDetections(include bool) *Builder {
	b.cfg.IncludeDetections = include
	return b
}

// WithClock overrides the clock used to name debug records and time stages.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.detector == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if b.cfg.MaxPixels < 0 {
		return nil, errors.New("max pixels must not be negative")
	}
	return &Pipeline{cfg: b.cfg, detector: b.detector, writer: b.writer, now: b.now}, nil
}
