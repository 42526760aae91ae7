package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini vision backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

const geminiPrompt = `Detect every piece of handwritten or printed text in the image, ` +
	`including digits and arithmetic symbols. Respond only with a JSON array of objects ` +
	`{"box_2d": [ymin, xmin, ymax, xmax], "text": "...", "confidence": 0.0-1.0} ` +
	`with coordinates normalized to 0-1000. Copy symbols verbatim.`

// geminiScale is the coordinate range of box_2d values.
const geminiScale = 1000.0

// GeminiEngine asks a Gemini model for text boxes.
type GeminiEngine struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiEngine creates a client bound to cfg.Model.
func NewGeminiEngine(ctx context.Context, cfg GeminiConfig) (*GeminiEngine, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", ErrBackendUnavailable)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	m := cl.GenerativeModel(strings.TrimSpace(cfg.Model))
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	return &GeminiEngine{client: cl, model: m}, nil
}

// Detect sends the image as PNG and parses the returned boxes.
func (g *GeminiEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	resp, err := g.model.GenerateContent(ctx,
		genai.Text(geminiPrompt),
		&genai.Blob{MIMEType: "image/png", Data: buf.Bytes()},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini detect: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return nil, errors.New("gemini detect: empty response")
	}
	b := img.Bounds()
	return parseGeminiBoxes(txt, b.Dx(), b.Dy())
}

// Name implements Engine.
func (g *GeminiEngine) Name() string { return BackendGemini }

// Close implements Engine.
func (g *GeminiEngine) Close() error { return g.client.Close() }

type geminiBox struct {
	Box        []float64 `json:"box_2d"`
	Text       string    `json:"text"`
	Confidence *float64  `json:"confidence"`
}

// parseGeminiBoxes decodes a box_2d response and scales it to a w x h image.
// Entries without four coordinates or with empty text are skipped. A missing
// confidence counts as 1.
func parseGeminiBoxes(raw string, w, h int) ([]Detection, error) {
	raw = stripCodeFences(raw)
	var boxes []geminiBox
	if err := json.Unmarshal([]byte(raw), &boxes); err != nil {
		return nil, fmt.Errorf("gemini detect: bad JSON: %w", err)
	}

	scale := func(v float64, size int) int {
		v = math.Max(0, math.Min(geminiScale, v))
		return int(math.Round(v / geminiScale * float64(size)))
	}
	dets := make([]Detection, 0, len(boxes))
	for _, gb := range boxes {
		text := CleanText(gb.Text)
		if len(gb.Box) != 4 || text == "" {
			continue
		}
		y0, x0 := scale(gb.Box[0], h), scale(gb.Box[1], w)
		y1, x1 := scale(gb.Box[2], h), scale(gb.Box[3], w)
		conf := 1.0
		if gb.Confidence != nil {
			conf = math.Max(0, math.Min(1, *gb.Confidence))
		}
		dets = append(dets, Detection{
			Polygon:    []image.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}},
			Text:       text,
			Confidence: conf,
		})
	}
	return dets, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
