package kv

import (
	"context"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound      = errors.New("key not found")
	ErrClosed        = errors.New("engine is closed")
	ErrUnknownEngine = errors.New("unknown storage engine")
)

// ErrStopScan can be returned from a Scan callback to end the scan early
// without reporting an error.
var ErrStopScan = errors.New("stop scan")

// Engine is an ordered key-value store with per-key atomicity.
type Engine interface {
	// Get returns a copy of the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error

	// CompareAndSwap replaces the value under key with value only if the
	// current value equals expected. A nil expected means the key must be
	// absent; a nil value deletes the key. Reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key, expected, value []byte) (bool, error)

	// Scan calls fn for every key with the given prefix in ascending key
	// order. The keys and values passed to fn are copies owned by the caller.
	// The scan observes a consistent snapshot; fn may write to the engine.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error

	// Close releases engine resources.
	Close() error
}

// Engine names accepted by Open.
const (
	EnginePebble = "pebble"
	EngineMemory = "memory"
)

// Options selects and configures an engine.
type Options struct {
	Engine string
	Path   string
}

// Open creates the engine described by opts.
func Open(opts Options) (Engine, error) {
	switch opts.Engine {
	case EnginePebble, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("pebble engine requires a path")
		}
		return OpenPebble(opts.Path)
	case EngineMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
	}
}
