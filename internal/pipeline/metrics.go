package pipeline

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request sources for Observe.
const (
	SourceHTTP      = "http"
	SourceWebSocket = "ws"
	SourceCLI       = "cli"
	SourceTelegram  = "telegram"
)

// Request statuses reported by Status.
const (
	StatusOK           = "ok"
	StatusInvalidImage = "invalid_image"
	StatusTimeout      = "timeout"
	StatusCanceled     = "canceled"
	StatusError        = "error"
)

var (
	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathocr_detect_requests_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"source", "status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathocr_pipeline_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	detectionsPerRequest = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mathocr_detections_per_request",
			Help:    "Number of text detections per pipeline run",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50},
		},
	)

	evaluationResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathocr_evaluation_results_total",
			Help: "Evaluation outcomes by kind",
		},
		[]string{"kind"},
	)

	artifactWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mathocr_artifact_warnings_total",
			Help: "Debug artifacts that could not be written",
		},
	)
)

// Status classifies a pipeline error for metrics and transport mapping.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidImage):
		return StatusInvalidImage
	case errors.Is(err, ocr.ErrTimeout):
		return StatusTimeout
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusError
	}
}

// Observe counts one pipeline run from source.
func Observe(source string, err error) {
	detectRequestsTotal.WithLabelValues(source, Status(err)).Inc()
}

func recordMetrics(res *Result, detections int) {
	for stage, d := range res.Timing.Stages() {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
	stageDuration.WithLabelValues("total").Observe(res.Timing.Total.Seconds())
	detectionsPerRequest.Observe(float64(detections))
	evaluationResultsTotal.WithLabelValues(res.Value.Kind.String()).Inc()
}
