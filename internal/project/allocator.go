package project

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fyrsmithlabs/projectd/internal/kv"
)

// DefaultMaxRetries bounds compare-and-swap retries per operation.
const DefaultMaxRetries = 1000

var counterKey = kv.Key("meta", "nextProjectId")

// Allocator issues monotonically increasing project IDs from a single
// persisted counter.
type Allocator struct {
	engine     kv.Engine
	maxRetries int
	metrics    *Metrics
}

// NewAllocator creates an allocator over engine.
func NewAllocator(engine kv.Engine, metrics *Metrics) *Allocator {
	return &Allocator{
		engine:     engine,
		maxRetries: DefaultMaxRetries,
		metrics:    metrics,
	}
}

// Allocate returns the current counter value and persists its successor.
// Two concurrent callers never receive the same ID: a caller whose
// compare-and-swap loses retries against the updated counter.
func (a *Allocator) Allocate(ctx context.Context) (uint64, error) {
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		current, expected, err := a.read(ctx)
		if err != nil {
			return 0, err
		}

		next := strconv.AppendUint(nil, current+1, 10)
		ok, err := a.engine.CompareAndSwap(ctx, counterKey, expected, next)
		if err != nil {
			return 0, fmt.Errorf("%w: advance id counter: %v", ErrStorage, err)
		}
		if ok {
			return current, nil
		}
		a.metrics.allocatorRetry(ctx)
	}
	return 0, fmt.Errorf("%w: id counter after %d attempts", ErrContention, a.maxRetries)
}

// Next returns the ID the next allocation would return, without consuming it.
func (a *Allocator) Next(ctx context.Context) (uint64, error) {
	current, _, err := a.read(ctx)
	return current, err
}

// Reset deletes the counter so the next allocation returns 0 again.
func (a *Allocator) Reset(ctx context.Context) error {
	if err := a.engine.Delete(ctx, counterKey); err != nil {
		return fmt.Errorf("%w: reset id counter: %v", ErrStorage, err)
	}
	return nil
}

// read returns the counter value (0 when unset) and the raw image to use as
// the compare-and-swap expectation (nil when unset).
func (a *Allocator) read(ctx context.Context) (uint64, []byte, error) {
	raw, err := a.engine.Get(ctx, counterKey)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read id counter: %v", ErrStorage, err)
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: corrupt id counter %q", ErrStorage, raw)
	}
	return n, raw, nil
}
