package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mathocr/internal/artifacts"
	"github.com/MeKo-Tech/mathocr/internal/config"
	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/MeKo-Tech/mathocr/internal/pipeline"
)

// openPipeline builds the engine pool and the pipeline around it. The caller
// closes the pool.
func openPipeline(cfg *config.Config) (*pipeline.Pipeline, *ocr.Pool, error) {
	pool, err := ocr.Open(cfg.ToOCRConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s engine: %w", cfg.Engine.Backend, err)
	}

	style := artifacts.DefaultStyle()
	if cfg.Debug.Enabled {
		style = cfg.ArtifactStyle()
	}
	writer, err := artifacts.NewWriter(cfg.DebugRoot(), cfg.Debug.URLPrefix, style)
	if err != nil {
		_ = pool.Close()
		return nil, nil, fmt.Errorf("failed to prepare debug artifacts: %w", err)
	}

	p, err := pipeline.NewBuilder(pool).
		WithArtifacts(writer).
		WithMaxPixels(cfg.Server.MaxPixels).
		WithDetections(cfg.Server.IncludeDetections).
		Build()
	if err != nil {
		_ = pool.Close()
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	slog.Debug("Pipeline ready",
		"engine", pool.Name(),
		"workers", pool.Workers(),
		"debug_root", cfg.DebugRoot())
	return p, pool, nil
}
