package kv

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
)

// Memory is an Engine kept entirely in process memory.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Set(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[string(key)] = bytes.Clone(value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, string(key))
	return nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, key, expected, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	current, ok := m.data[string(key)]
	if !matches(current, ok, expected) {
		return false, nil
	}
	if value == nil {
		delete(m.data, string(key))
	} else {
		m.data[string(key)] = bytes.Clone(value)
	}
	return true, nil
}

func (m *Memory) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	type entry struct {
		key   string
		value []byte
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	entries := make([]entry, 0)
	for k, v := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			entries = append(entries, entry{key: k, value: bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn([]byte(e.key), e.value); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// matches reports whether the current state of a key satisfies a
// CompareAndSwap expectation.
func matches(current []byte, present bool, expected []byte) bool {
	if expected == nil {
		return !present
	}
	return present && bytes.Equal(current, expected)
}
