package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/mathocr/internal/utils"
)

// FileResult is the outcome for one input file.
type FileResult struct {
	Path   string  `json:"archivo"`
	Result *Result `json:"resultado,omitempty"`
	Err    error   `json:"-"`
}

type fileJob struct {
	index int
	path  string
}

// ProcessFiles runs the pipeline over paths with up to workers goroutines
// and returns one FileResult per path in input order. Per-file failures are
// reported in FileResult.Err; only cancellation fails the whole batch.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, workers int) ([]FileResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(paths))

	jobs := make(chan fileJob)
	results := make([]FileResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results[job.index] = p.processFile(ctx, job.path)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- fileJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return FileResult{Path: path, Err: fmt.Errorf("%w: %w", ErrInvalidImage, err)}
	}
	res, err := p.Process(ctx, img)
	return FileResult{Path: path, Result: res, Err: err}
}
