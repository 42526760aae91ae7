// Package detector runs a DB (differentiable binarization) text detection
// model and turns its probability map into text regions.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/geometry"
	"github.com/MeKo-Tech/mathocr/internal/onnx"
	"github.com/disintegration/imaging"
	"github.com/yalue/onnxruntime_go"
)

// Config holds detection model settings.
type Config struct {
	ModelPath    string  // Path to ONNX detection model
	LibraryPath  string  // Optional ONNX Runtime shared library path
	DbThresh     float32 // Probability threshold for the binary map (default: 0.3)
	DbBoxThresh  float32 // Minimum mean probability of a region (default: 0.6)
	UnclipRatio  float64 // Region expansion ratio (default: 1.5)
	MaxImageSize int     // Longest side after resizing (default: 960)
	MinBoxSize   int     // Minimum region side in map pixels (default: 3)
	NumThreads   int     // Number of CPU threads (default: 0 for auto)
}

// DefaultConfig returns the settings PP-OCR mobile detection models expect.
func DefaultConfig() Config {
	return Config{
		DbThresh:     0.3,
		DbBoxThresh:  0.6,
		UnclipRatio:  1.5,
		MaxImageSize: 960,
		MinBoxSize:   3,
	}
}

// Region is a detected text region in original image coordinates.
type Region struct {
	Box        geometry.Box
	Confidence float64
}

// Polygon returns the region corners clockwise from the top-left.
func (r Region) Polygon() []image.Point { return r.Box.Polygon() }

// Detector performs text detection using ONNX Runtime. A Detector is not
// safe for concurrent Detect calls.
type Detector struct {
	config  Config
	session *onnxruntime_go.DynamicAdvancedSession
	mu      sync.Mutex
}

// NewDetector loads the model and creates an inference session.
func NewDetector(config Config) (*Detector, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("detection model not found: %w", err)
	}

	slog.Debug("Initializing detector", "model_path", config.ModelPath, "max_image_size", config.MaxImageSize)

	if err := onnx.Initialize(config.LibraryPath); err != nil {
		return nil, err
	}
	in, out, err := onnx.ModelIO(config.ModelPath)
	if err != nil {
		return nil, err
	}
	session, err := onnx.NewSession(config.ModelPath, in, out, onnx.SessionOptions{NumThreads: config.NumThreads})
	if err != nil {
		return nil, err
	}

	return &Detector{config: config, session: session}, nil
}

func validateConfig(c Config) error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.DbThresh <= 0 || c.DbThresh >= 1 {
		return fmt.Errorf("db threshold must be in (0,1), got %v", c.DbThresh)
	}
	if c.DbBoxThresh < 0 || c.DbBoxThresh > 1 {
		return fmt.Errorf("box threshold must be in [0,1], got %v", c.DbBoxThresh)
	}
	if c.MaxImageSize < 32 {
		return fmt.Errorf("max image size must be at least 32, got %d", c.MaxImageSize)
	}
	return nil
}

// Close releases the inference session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}

// Detect returns text regions in reading order.
func (d *Detector) Detect(img image.Image) ([]Region, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("input image is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, errors.New("detector is closed")
	}

	start := time.Now()
	origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
	resized := resizeForDetection(img, d.config.MaxImageSize)

	tensor, err := onnx.ImageToTensor(resized, onnx.ImageNetNormalization)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	prob, shape, err := onnx.RunFloat(d.session, tensor)
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("expected 4D output tensor, got %dD", len(shape))
	}
	mapW, mapH := int(shape[3]), int(shape[2])

	regions := PostProcess(prob[:mapW*mapH], mapW, mapH, PostProcessOptions{
		Thresh:      d.config.DbThresh,
		BoxThresh:   d.config.DbBoxThresh,
		UnclipRatio: d.config.UnclipRatio,
		MinSize:     d.config.MinBoxSize,
	})
	regions = ScaleRegions(regions, mapW, mapH, origW, origH)
	SortReadingOrder(regions)

	slog.Debug("Detection inference finished",
		"regions_found", len(regions),
		"map_size", fmt.Sprintf("%dx%d", mapW, mapH),
		"duration_ms", time.Since(start).Milliseconds())
	return regions, nil
}

// resizeForDetection scales img so the longest side is at most maxSide and
// both sides are multiples of 32.
func resizeForDetection(img image.Image, maxSide int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scale := 1.0
	if longest := max(w, h); longest > maxSide {
		scale = float64(maxSide) / float64(longest)
	}
	newW := max(32, int(math.Round(float64(w)*scale/32))*32)
	newH := max(32, int(math.Round(float64(h)*scale/32))*32)
	if newW == w && newH == h {
		return img
	}
	return imaging.Resize(img, newW, newH, imaging.Linear)
}
