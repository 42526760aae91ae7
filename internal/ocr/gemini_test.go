package ocr

import (
	"context"
	"image"
	"os"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeminiBoxes(t *testing.T) {
	raw := "```json\n" + `[
		{"box_2d": [100, 0, 500, 250], "text": "12", "confidence": 0.9},
		{"box_2d": [100, 300, 500, 400], "text": "x"},
		{"box_2d": [1, 2], "text": "bad"},
		{"box_2d": [0, 0, 10, 10], "text": "  "},
		{"box_2d": [0, 900, 1200, 1000], "text": "5", "confidence": 3}
	]` + "\n```"

	dets, err := parseGeminiBoxes(raw, 200, 100)
	require.NoError(t, err)
	require.Len(t, dets, 3)

	assert.Equal(t, []image.Point{{0, 10}, {50, 10}, {50, 50}, {0, 50}}, dets[0].Polygon)
	assert.Equal(t, "12", dets[0].Text)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-9)

	assert.Equal(t, "x", dets[1].Text)
	assert.InDelta(t, 1.0, dets[1].Confidence, 1e-9)

	// coordinates and confidence are clamped
	assert.Equal(t, image.Pt(200, 100), dets[2].Polygon[2])
	assert.InDelta(t, 1.0, dets[2].Confidence, 1e-9)
}

func TestParseGeminiBoxes_BadJSON(t *testing.T) {
	_, err := parseGeminiBoxes("not json", 10, 10)
	assert.Error(t, err)
}

func TestParseGeminiBoxes_Empty(t *testing.T) {
	dets, err := parseGeminiBoxes("[]", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "[]", stripCodeFences("```json\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFences(" [] "))
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
}

func TestGeminiEngine_Live(t *testing.T) {
	key := os.Getenv("MATHOCR_ENGINE_GEMINI_API_KEY")
	if key == "" || testing.Short() {
		t.Skip("MATHOCR_ENGINE_GEMINI_API_KEY not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng, err := NewGeminiEngine(ctx, GeminiConfig{APIKey: key, Model: "gemini-1.5-flash"})
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	cfg := testutil.DefaultTestImageConfig()
	cfg.Text = "3+4"
	dets, err := eng.Detect(ctx, testutil.GenerateTextImage(cfg))
	require.NoError(t, err)
	for _, d := range dets {
		assert.Len(t, d.Polygon, 4)
		assert.Equal(t, CleanText(d.Text), d.Text)
	}
}
