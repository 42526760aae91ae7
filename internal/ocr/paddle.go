package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/mathocr/internal/detector"
	"github.com/MeKo-Tech/mathocr/internal/geometry"
	"github.com/MeKo-Tech/mathocr/internal/recognizer"
)

// PaddleConfig configures the PaddleOCR ONNX backend.
type PaddleConfig struct {
	Detector   detector.Config
	Recognizer recognizer.Config
}

// PaddleEngine chains a DB detector and a CTC recognizer.
type PaddleEngine struct {
	det *detector.Detector
	rec *recognizer.Recognizer
}

// NewPaddleEngine loads both models. The detector is closed again if the
// recognizer cannot be created.
func NewPaddleEngine(cfg PaddleConfig) (*PaddleEngine, error) {
	det, err := detector.NewDetector(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("%w: detector: %w", ErrBackendUnavailable, err)
	}
	rec, err := recognizer.NewRecognizer(cfg.Recognizer)
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("%w: recognizer: %w", ErrBackendUnavailable, err)
	}
	return &PaddleEngine{det: det, rec: rec}, nil
}

// Detect finds text regions in reading order and recognizes each one.
// Regions whose text comes back empty are dropped.
func (p *PaddleEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	regions, err := p.det.Detect(img)
	if err != nil {
		return nil, err
	}

	dets := make([]Detection, 0, len(regions))
	for i, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop := geometry.Crop(img, r.Box)
		if crop.Bounds().Empty() {
			continue
		}
		res, err := p.rec.Recognize(crop)
		if err != nil {
			slog.Warn("Recognition failed for region", "region", i, "error", err)
			continue
		}
		text := CleanText(res.Text)
		if text == "" {
			continue
		}
		dets = append(dets, Detection{
			Polygon:    r.Polygon(),
			Text:       text,
			Confidence: res.Confidence,
		})
	}
	return dets, nil
}

// Name implements Engine.
func (p *PaddleEngine) Name() string { return BackendPaddle }

// Close implements Engine.
func (p *PaddleEngine) Close() error {
	return errors.Join(p.det.Close(), p.rec.Close())
}
