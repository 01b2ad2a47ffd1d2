package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
)

// lockStripes is the number of mutexes writes are spread over. Writes to the
// same key always take the same stripe, which makes CompareAndSwap atomic
// with respect to every other write in this process.
const lockStripes = 256

// writeOptions syncs every write to the WAL before acknowledging it.
var writeOptions = pebble.Sync

// Pebble is an Engine persisted with github.com/cockroachdb/pebble.
//
// Pebble has no native compare-and-swap, so conditional writes are
// serialized per key with striped locks. A Pebble directory can only be
// opened by one process, so in-process serialization is sufficient.
type Pebble struct {
	db     *pebble.DB
	dir    string
	locks  [lockStripes]sync.Mutex
	closed atomic.Bool
}

// OpenPebble opens (creating if needed) a Pebble database at dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &Pebble{db: db, dir: dir}, nil
}

// Dir returns the database directory.
func (p *Pebble) Dir() string {
	return p.dir
}

// Metrics exposes Pebble's internal metrics for collectors.
func (p *Pebble) Metrics() *pebble.Metrics {
	return p.db.Metrics()
}

func (p *Pebble) lockFor(key []byte) *sync.Mutex {
	return &p.locks[xxhash.Sum64(key)%lockStripes]
}

func (p *Pebble) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	return p.get(key)
}

func (p *Pebble) get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pebble) Set(ctx context.Context, key, value []byte) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	mu := p.lockFor(key)
	mu.Lock()
	defer mu.Unlock()
	return p.db.Set(key, value, writeOptions)
}

func (p *Pebble) Delete(ctx context.Context, key []byte) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	mu := p.lockFor(key)
	mu.Lock()
	defer mu.Unlock()
	return p.db.Delete(key, writeOptions)
}

func (p *Pebble) CompareAndSwap(ctx context.Context, key, expected, value []byte) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}
	mu := p.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	current, err := p.get(key)
	present := true
	if errors.Is(err, ErrNotFound) {
		present = false
	} else if err != nil {
		return false, err
	}
	if !matches(current, present, expected) {
		return false, nil
	}

	if value == nil {
		err = p.db.Delete(key, writeOptions)
	} else {
		err = p.db.Set(key, value, writeOptions)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pebble) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) (err error) {
	if err := p.check(ctx); err != nil {
		return err
	}

	snap := p.db.NewSnapshot()
	defer snap.Close()

	iter, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := iter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

func (p *Pebble) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}

func (p *Pebble) check(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}
