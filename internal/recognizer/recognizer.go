// Package recognizer runs a CTC text recognition model on cropped text lines.
package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath        string // Path to ONNX recognition model
	DictPath         string // Path to character dictionary
	LibraryPath      string // Optional ONNX Runtime shared library path
	ImageHeight      int    // Model input height (48 for PP-OCRv5)
	MaxWidth         int    // Width clamp after resizing (0 = no clamp)
	PadWidthMultiple int    // Right-pad width to this multiple (0 = no padding)
	NumThreads       int    // Number of CPU threads (0 for default)
}

// DefaultConfig returns a configuration for PP-OCRv5 mobile recognition.
func DefaultConfig() Config {
	return Config{
		ImageHeight:      48,
		MaxWidth:         3200,
		PadWidthMultiple: 8,
	}
}

// Result is the recognized text of one line.
type Result struct {
	Text       string
	Confidence float64
	CharProbs  []float64
}

// Recognizer performs text recognition using ONNX Runtime. Recognize calls
// are serialized.
type Recognizer struct {
	config  Config
	session *onnxruntime_go.DynamicAdvancedSession
	charset *Charset
	mu      sync.Mutex
}

// NewRecognizer loads the dictionary and model.
func NewRecognizer(config Config) (*Recognizer, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if config.ImageHeight <= 0 {
		return nil, fmt.Errorf("invalid image height: %d", config.ImageHeight)
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("recognition model not found: %w", err)
	}
	charset, err := LoadCharset(config.DictPath)
	if err != nil {
		return nil, err
	}

	if err := onnx.Initialize(config.LibraryPath); err != nil {
		return nil, err
	}
	in, out, err := onnx.ModelIO(config.ModelPath)
	if err != nil {
		return nil, err
	}
	session, err := onnx.NewSession(config.ModelPath, in, out, onnx.SessionOptions{NumThreads: config.NumThreads})
	if err != nil {
		return nil, err
	}

	slog.Debug("Recognizer initialized",
		"model_path", config.ModelPath,
		"dict_size", len(charset.Tokens),
		"image_height", config.ImageHeight)
	return &Recognizer{config: config, session: session, charset: charset}, nil
}

// Close releases the inference session.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	return err
}

// Recognize decodes the text in a single cropped line image.
func (r *Recognizer) Recognize(img image.Image) (Result, error) {
	start := time.Now()
	resized, err := ResizeForRecognition(img, r.config.ImageHeight, r.config.MaxWidth, r.config.PadWidthMultiple)
	if err != nil {
		return Result{}, fmt.Errorf("preprocessing failed: %w", err)
	}
	tensor, err := onnx.ImageToTensor(resized, onnx.SymmetricNormalization)
	if err != nil {
		return Result{}, fmt.Errorf("preprocessing failed: %w", err)
	}

	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return Result{}, errors.New("recognizer is closed")
	}
	logits, shape, err := onnx.RunFloat(r.session, tensor)
	r.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	res, err := decode(logits, shape, r.charset)
	if err != nil {
		return Result{}, err
	}
	slog.Debug("Recognition finished",
		"text", res.Text,
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// decode turns model output for a single line into text.
func decode(logits []float32, shape []int64, charset *Charset) (Result, error) {
	seqs := DecodeCTCGreedy(logits, shape, 0, classesFirst(shape, charset.Classes()))
	if len(seqs) == 0 {
		return Result{}, fmt.Errorf("unexpected recognition output shape %v", shape)
	}
	seq := seqs[0]
	return Result{
		Text:       charset.Decode(seq.Collapsed),
		Confidence: SequenceConfidence(seq.CollapsedProb),
		CharProbs:  seq.CollapsedProb,
	}, nil
}
