package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/common"
	"github.com/MeKo-Tech/mathocr/internal/expression"
	"github.com/MeKo-Tech/mathocr/internal/geometry"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/preprocess"
	"github.com/MeKo-Tech/mathocr/internal/utils"
)

// ProcessBytes decodes data and runs Process. Undecodable input fails with
// ErrInvalidImage before any artifact is written.
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte) (*Result, error) {
	img, meta, err := utils.DecodeImage(data, p.cfg.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	slog.Debug("Image decoded", "format", meta.Format, "width", meta.Width, "height", meta.Height)
	return p.Process(ctx, img)
}

// Process runs the pipeline on img. Only invalid input, detector failures
// and timeouts are returned as errors; artifact problems become warnings and
// evaluation failures become the failure sentinel.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, preprocess.ErrEmptyImage)
	}
	sw := common.NewStopwatchWithClock(p.now)
	res := &Result{}
	b := img.Bounds()
	slog.Debug("Starting image processing", "width", b.Dx(), "height", b.Dy())

	rec := p.begin(res)
	sw.Lap(stageArtifacts)

	binary, err := preprocess.Binarize(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	sw.Lap(stagePreprocess)
	if rec != nil {
		p.warnIf(res, rec.WriteBinary(binary))
		sw.Lap(stageArtifacts)
	}

	// detection runs on the binary image, crops and annotation use the original
	dets, err := p.detector.Detect(ctx, binary)
	if err != nil {
		slog.Debug("Text detection failed", "error", err, "timeout", errors.Is(err, ocr.ErrTimeout))
		return nil, fmt.Errorf("detect text: %w", err)
	}
	detectTime := sw.Lap(stageDetect)
	slog.Debug("Text detection completed", "detections", len(dets), "duration_ms", detectTime.Milliseconds())

	texts := p.collect(res, rec, img, dets)
	sw.Lap(stageArtifacts)

	res.Expression = expression.Normalize(expression.Assemble(texts))
	res.Value = expression.Evaluate(res.Expression)
	sw.Lap(stageEvaluate)
	if res.Value.Kind == expression.Failed {
		slog.Debug("Evaluation failed", "expression", res.Expression, "error", res.Value.Err)
	}

	res.Message = MessageOK
	if len(res.Warnings) > 0 {
		res.Message = MessageWarnings
	}
	res.Timing = timingFrom(sw)
	recordMetrics(res, len(dets))

	slog.Debug("Image processing completed",
		"expression", res.Expression,
		"result", res.Value.String(),
		"warnings", len(res.Warnings),
		"stages", sw.String(),
		"duration_ms", res.Timing.Total.Milliseconds())
	return res, nil
}

// begin creates the debug record. Failure to create it is a warning and
// disables artifacts for this request.
func (p *Pipeline) begin(res *Result) *artifacts.Record {
	if !p.writer.Enabled() {
		return nil
	}
	rec, err := p.writer.Begin(p.now())
	if err != nil {
		p.warnIf(res, err)
		return nil
	}
	res.AnnotatedURL = rec.URL(artifacts.AnnotatedFile)
	return rec
}

// collect derives boxes, writes crops and the annotated image, and returns
// the detection texts in emission order.
func (p *Pipeline) collect(res *Result, rec *artifacts.Record, img image.Image, dets []ocr.Detection) []string {
	texts := make([]string, 0, len(dets))
	labels := make([]artifacts.Label, 0, len(dets))
	for i, d := range dets {
		box := geometry.BoundingBox(d.Polygon)
		texts = append(texts, d.Text)
		labels = append(labels, artifacts.Label{Box: box, Text: d.Text})

		var cropURL string
		if rec != nil {
			name, err := rec.WriteCrop(i, d.Text, geometry.Crop(img, box))
			if err == nil {
				cropURL = rec.URL(name)
			}
			p.warnIf(res, err)
		}
		if p.cfg.IncludeDetections {
			res.Detections = append(res.Detections, DetectionView{
				Index:      i,
				Text:       d.Text,
				Box:        box,
				Confidence: d.Confidence,
				CropURL:    cropURL,
			})
		}
	}

	if rec != nil {
		annotated := p.writer.Annotator().Annotate(img, labels)
		if err := rec.WriteAnnotated(annotated); err != nil {
			p.warnIf(res, err)
			res.AnnotatedURL = ""
		}
	}
	return texts
}

func (p *Pipeline) warnIf(res *Result, err error) {
	if err == nil {
		return
	}
	slog.Warn("Debug artifact not written", "error", err)
	artifactWarningsTotal.Inc()
	res.Warnings = append(res.Warnings, err.Error())
}
