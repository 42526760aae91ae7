// Package ocr defines the text detection capability the pipeline depends on
// and the backends that provide it.
package ocr

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrTimeout is returned when detection does not finish within the
	// configured deadline. It wraps context.DeadlineExceeded.
	ErrTimeout = errors.New("text detection timed out")

	// ErrBackendUnavailable is returned when a backend was not compiled in or
	// is missing its runtime requirements.
	ErrBackendUnavailable = errors.New("ocr backend unavailable")

	// ErrUnknownBackend is returned for backend names the factory does not know.
	ErrUnknownBackend = errors.New("unknown ocr backend")

	// ErrPoolClosed is returned by Pool.Detect after Close.
	ErrPoolClosed = errors.New("ocr pool is closed")
)

// Detection is one recognized text region. Polygon holds at least three
// points for real detections, in image pixel coordinates.
type Detection struct {
	Polygon    []image.Point `json:"polygon"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
}

// Engine detects and transcribes text regions. Results are returned in the
// backend's native emission order; no reading order is implied. An empty
// slice is a valid result. Implementations are not required to be safe for
// concurrent use; Pool serializes access.
type Engine interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Name() string
	Close() error
}

// filterByConfidence drops detections below minConf, keeping order.
func filterByConfidence(dets []Detection, minConf float64) []Detection {
	if minConf <= 0 {
		return dets
	}
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= minConf {
			out = append(out, d)
		}
	}
	return out
}
