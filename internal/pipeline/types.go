package pipeline

import (
	"errors"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/common"
	"github.com/MeKo-Tech/mathocr/internal/expression"
	"github.com/MeKo-Tech/mathocr/internal/geometry"
)

// ErrInvalidImage marks input that could not be decoded or has no pixels.
var ErrInvalidImage = errors.New("invalid image")

// Response messages.
const (
	MessageOK       = "✅ Procesado correctamente"
	MessageWarnings = "⚠️ Procesado con advertencias"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Expression   string            `json:"expresion"`
	Value        expression.Result `json:"resultado"`
	Message      string            `json:"mensaje_db"`
	AnnotatedURL string            `json:"annotated_url"`
	Warnings     []string          `json:"advertencias,omitempty"`
	Detections   []DetectionView   `json:"detecciones,omitempty"`
	Timing       Timing            `json:"-"`
}

// DetectionView describes one detection in emission order.
type DetectionView struct {
	Index      int          `json:"indice"`
	Text       string       `json:"texto"`
	Box        geometry.Box `json:"caja"`
	Confidence float64      `json:"confianza"`
	CropURL    string       `json:"recorte_url,omitempty"`
}

// Timing holds per-stage durations.
type Timing struct {
	Preprocess time.Duration
	Detect     time.Duration
	Artifacts  time.Duration
	Evaluate   time.Duration
	Total      time.Duration
}

const (
	stagePreprocess = "preprocess"
	stageDetect     = "detect"
	stageArtifacts  = "artifacts"
	stageEvaluate   = "evaluate"
)

// Stages returns the timing as stage name to duration.
func (t Timing) Stages() map[string]time.Duration {
	return map[string]time.Duration{
		stagePreprocess: t.Preprocess,
		stageDetect:     t.Detect,
		stageArtifacts:  t.Artifacts,
		stageEvaluate:   t.Evaluate,
	}
}

// timingFrom sums the stopwatch laps per stage. Artifact writes are
// interleaved with other stages and accumulate.
func timingFrom(sw *common.Stopwatch) Timing {
	return Timing{
		Preprocess: sw.Sum(stagePreprocess),
		Detect:     sw.Sum(stageDetect),
		Artifacts:  sw.Sum(stageArtifacts),
		Evaluate:   sw.Sum(stageEvaluate),
		Total:      sw.Total(),
	}
}
