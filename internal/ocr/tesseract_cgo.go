//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs Tesseract word-level recognition through gosseract.
type TesseractEngine struct {
	cfg    TesseractConfig
	client *gosseract.Client
}

// NewTesseractEngine creates a client with the configured languages.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	c := gosseract.NewClient()
	if len(cfg.Languages) > 0 {
		if err := c.SetLanguage(cfg.Languages...); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: set languages: %w", ErrBackendUnavailable, err)
		}
	}
	if cfg.Whitelist != "" {
		if err := c.SetWhitelist(cfg.Whitelist); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: set whitelist: %w", ErrBackendUnavailable, err)
		}
	}
	return &TesseractEngine{cfg: cfg, client: c}, nil
}

// Detect returns one detection per recognized word.
func (e *TesseractEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	origin := img.Bounds().Min
	dets := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		text := CleanText(b.Word)
		if text == "" {
			continue
		}
		r := b.Box.Sub(origin)
		dets = append(dets, Detection{
			Polygon: []image.Point{
				{X: r.Min.X, Y: r.Min.Y},
				{X: r.Max.X, Y: r.Min.Y},
				{X: r.Max.X, Y: r.Max.Y},
				{X: r.Min.X, Y: r.Max.Y},
			},
			Text:       text,
			Confidence: b.Confidence / 100.0,
		})
	}
	return dets, nil
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return BackendTesseract }

// Close implements Engine.
func (e *TesseractEngine) Close() error { return e.client.Close() }
