package ocr

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/mathocr/internal/detector"
	"github.com/MeKo-Tech/mathocr/internal/recognizer"
	"github.com/MeKo-Tech/mathocr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddleEngine_WithModels(t *testing.T) {
	m := testutil.RequirePaddleModels(t)

	det := detector.DefaultConfig()
	det.ModelPath = m.Detector
	rec := recognizer.DefaultConfig()
	rec.ModelPath = m.Recognizer
	rec.DictPath = m.Dictionary

	eng, err := NewPaddleEngine(PaddleConfig{Detector: det, Recognizer: rec})
	if err != nil {
		t.Skipf("onnx runtime unavailable: %v", err)
	}
	defer func() { _ = eng.Close() }()
	assert.Equal(t, BackendPaddle, eng.Name())

	cfg := testutil.DefaultTestImageConfig()
	cfg.Text = "2+2"
	img := testutil.GenerateTextImage(cfg)

	dets, err := eng.Detect(context.Background(), img)
	require.NoError(t, err)
	for _, d := range dets {
		assert.GreaterOrEqual(t, len(d.Polygon), 4)
		assert.Equal(t, CleanText(d.Text), d.Text)
	}
}
