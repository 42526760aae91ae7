package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEngine records the maximum number of concurrent Detect calls.
type countingEngine struct {
	active  *atomic.Int32
	maxSeen *atomic.Int32
	delay   time.Duration
	closed  bool
}

func (c *countingEngine) Detect(ctx context.Context, _ image.Image) ([]Detection, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxSeen.Load()
		if n <= m || c.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(c.delay)
	return []Detection{{Text: "1"}}, nil
}

func (c *countingEngine) Name() string { return "counting" }
func (c *countingEngine) Close() error { c.closed = true; return nil }

type panicEngine struct{}

func (panicEngine) Detect(context.Context, image.Image) ([]Detection, error) { panic("boom") }
func (panicEngine) Name() string { return "panic" }
func (panicEngine) Close() error { return nil }

func img() image.Image { return image.NewRGBA(image.Rect(0, 0, 4, 4)) }

func TestPool_SerializesEachEngine(t *testing.T) {
	var active, maxSeen atomic.Int32
	pool, err := NewPool(func() (Engine, error) {
		return &countingEngine{active: &active, maxSeen: &maxSeen, delay: 10 * time.Millisecond}, nil
	}, PoolConfig{Workers: 2})
	require.NoError(t, err)
	defer pool.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Detect(context.Background(), img())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
	assert.Equal(t, 0, pool.Busy())
	assert.Equal(t, 2, pool.Workers())
	assert.Equal(t, "counting", pool.Name())
}

func TestPool_Timeout(t *testing.T) {
	slow := NewStaticEngine("1")
	slow.Delay = time.Second
	pool, err := NewPool(func() (Engine, error) { return slow, nil },
		PoolConfig{Workers: 1, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Detect(context.Background(), img())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_TimeoutWaitingForWorker(t *testing.T) {
	slow := NewStaticEngine("1")
	slow.Delay = 200 * time.Millisecond
	pool, err := NewPool(func() (Engine, error) { return slow, nil },
		PoolConfig{Workers: 1, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer pool.Close()

	done := make(chan error, 1)
	go func() {
		_, err := pool.Detect(context.Background(), img())
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	_, err = pool.Detect(context.Background(), img())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, <-done, ErrTimeout)
}

func TestPool_MinConfidence(t *testing.T) {
	eng := &StaticEngine{Detections: []Detection{
		{Text: "1", Confidence: 0.9},
		{Text: "+", Confidence: 0.2},
		{Text: "2", Confidence: 0.5},
	}}
	pool, err := NewPool(func() (Engine, error) { return eng, nil }, PoolConfig{MinConfidence: 0.5})
	require.NoError(t, err)
	defer pool.Close()

	dets, err := pool.Detect(context.Background(), img())
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, "1", dets[0].Text)
	assert.Equal(t, "2", dets[1].Text)
}

func TestPool_EngineError(t *testing.T) {
	boom := errors.New("boom")
	pool, err := NewPool(func() (Engine, error) { return &StaticEngine{Err: boom}, nil }, PoolConfig{})
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Detect(context.Background(), img())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestPool_RecoversPanic(t *testing.T) {
	pool, err := NewPool(func() (Engine, error) { return panicEngine{}, nil }, PoolConfig{})
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Detect(context.Background(), img())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// the engine went back to the pool
	_, err = pool.Detect(context.Background(), img())
	require.Error(t, err)
}

func TestPool_FactoryErrorClosesCreated(t *testing.T) {
	var created []*countingEngine
	var active, maxSeen atomic.Int32
	calls := 0
	_, err := NewPool(func() (Engine, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("no model")
		}
		e := &countingEngine{active: &active, maxSeen: &maxSeen}
		created = append(created, e)
		return e, nil
	}, PoolConfig{Workers: 3})
	require.Error(t, err)
	require.Len(t, created, 2)
	for _, e := range created {
		assert.True(t, e.closed)
	}
}

func TestPool_Close(t *testing.T) {
	pool, err := NewPool(func() (Engine, error) { return NewStaticEngine("1"), nil }, PoolConfig{Workers: 2})
	require.NoError(t, err)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err = pool.Detect(context.Background(), img())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestNewPool_NilFactory(t *testing.T) {
	_, err := NewPool(nil, PoolConfig{})
	assert.Error(t, err)
}
