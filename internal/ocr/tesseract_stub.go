//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"
)

// TesseractEngine is unavailable in builds without cgo.
type TesseractEngine struct{}

// NewTesseractEngine always fails without cgo.
func NewTesseractEngine(TesseractConfig) (*TesseractEngine, error) {
	return nil, fmt.Errorf("%w: tesseract requires cgo", ErrBackendUnavailable)
}

// Detect implements Engine.
func (e *TesseractEngine) Detect(context.Context, image.Image) ([]Detection, error) {
	return nil, ErrBackendUnavailable
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return BackendTesseract }

// Close implements Engine.
func (e *TesseractEngine) Close() error { return nil }
