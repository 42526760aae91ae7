package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

// Factory creates one engine instance. Pools call it once per worker.
type Factory func() (Engine, error)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the number of engine instances; each is used by at most one
	// request at a time.
	Workers int
	// Timeout bounds the wait for a free worker plus the detection itself.
	// Zero disables the deadline.
	Timeout time.Duration
	// MinConfidence drops detections below the threshold.
	MinConfidence float64
}

// Pool hands out engine instances to callers one at a time and applies a
// deadline to each detection.
type Pool struct {
	name    string
	cfg     PoolConfig
	all     []Engine
	idle    chan Engine
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewPool creates cfg.Workers engines with factory. If any instance fails to
// initialize, the ones already created are closed.
func NewPool(factory Factory, cfg PoolConfig) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("engine factory is nil")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	p := &Pool{
		cfg:  cfg,
		idle: make(chan Engine, cfg.Workers),
		done: make(chan struct{}),
	}
	for i := range cfg.Workers {
		eng, err := factory()
		if err != nil {
			for _, e := range p.all {
				_ = e.Close()
			}
			return nil, fmt.Errorf("create engine %d/%d: %w", i+1, cfg.Workers, err)
		}
		p.all = append(p.all, eng)
		p.idle <- eng
	}
	p.name = p.all[0].Name()

	slog.Debug("OCR engine pool ready", "engine", p.name, "workers", cfg.Workers, "timeout", cfg.Timeout)
	return p, nil
}

// Name returns the backend name of the pooled engines.
func (p *Pool) Name() string { return p.name }

// Workers returns the number of engine instances.
func (p *Pool) Workers() int { return len(p.all) }

// Busy returns the number of engines currently running a detection.
func (p *Pool) Busy() int { return len(p.all) - len(p.idle) }

type detectResult struct {
	dets []Detection
	err  error
}

// Detect runs detection on a free engine. It returns ErrTimeout when no
// engine frees up or the engine does not answer before the deadline. A late
// engine keeps running in the background and rejoins the pool when it
// finishes; its result is discarded.
func (p *Pool) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	var eng Engine
	select {
	case eng = <-p.idle:
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, contextError(ctx)
	}

	results := make(chan detectResult, 1)
	start := time.Now()
	enginesBusy.Inc()
	go func() {
		defer func() {
			enginesBusy.Dec()
			p.idle <- eng
		}()
		defer func() {
			if r := recover(); r != nil {
				results <- detectResult{err: fmt.Errorf("engine %s panicked: %v", eng.Name(), r)}
			}
		}()
		dets, err := eng.Detect(ctx, img)
		results <- detectResult{dets: dets, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, contextError(ctx)
			}
			return nil, r.err
		}
		dets := filterByConfidence(r.dets, p.cfg.MinConfidence)
		slog.Debug("Text detection finished",
			"engine", p.name,
			"detections", len(dets),
			"filtered", len(r.dets)-len(dets),
			"duration_ms", time.Since(start).Milliseconds())
		return dets, nil
	case <-ctx.Done():
		slog.Warn("Text detection abandoned", "engine", p.name, "error", ctx.Err())
		return nil, contextError(ctx)
	}
}

// Close waits for in-flight detections and closes every engine.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.closeMu.Unlock()

	var errs []error
	for range p.all {
		eng := <-p.idle
		if err := eng.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return ctx.Err()
}
