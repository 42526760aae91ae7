package ocr

import (
	"context"
	"image"
	"time"
)

// StaticEngine returns a fixed list of detections for every image. It backs
// tests and the offline demo mode.
type StaticEngine struct {
	Detections []Detection
	// Delay simulates model latency; Detect honours ctx while waiting.
	Delay time.Duration
	// Err, when set, is returned instead of detections.
	Err error
}

// NewStaticEngine builds an engine emitting one detection per text, laid out
// left to right in a single row so crops and annotations are meaningful.
func NewStaticEngine(texts ...string) *StaticEngine {
	dets := make([]Detection, 0, len(texts))
	x := 10
	for _, t := range texts {
		w := 14 * max(len([]rune(t)), 1)
		dets = append(dets, Detection{
			Polygon: []image.Point{
				{X: x, Y: 10},
				{X: x + w, Y: 10},
				{X: x + w, Y: 40},
				{X: x, Y: 40},
			},
			Text:       t,
			Confidence: 1,
		})
		x += w + 6
	}
	return &StaticEngine{Detections: dets}
}

// Detect returns a copy of the configured detections.
func (s *StaticEngine) Detect(ctx context.Context, _ image.Image) ([]Detection, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]Detection, len(s.Detections))
	for i, d := range s.Detections {
		out[i] = Detection{
			Polygon:    append([]image.Point(nil), d.Polygon...),
			Text:       d.Text,
			Confidence: d.Confidence,
		}
	}
	return cleanDetections(out), nil
}

// Name implements Engine.
func (s *StaticEngine) Name() string { return "static" }

// Close implements Engine.
func (s *StaticEngine) Close() error { return nil }
