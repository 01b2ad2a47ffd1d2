package project

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/kv"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	engine := kv.NewMemory()
	t.Cleanup(func() { _ = engine.Close() })

	store, err := NewStore(engine, opts...)
	require.NoError(t, err)
	return store
}

// forEachEngine runs fn against a store on every engine.
func forEachEngine(t *testing.T, fn func(t *testing.T, s *Store)) {
	factories := map[string]func(t *testing.T) kv.Engine{
		kv.EngineMemory: func(*testing.T) kv.Engine { return kv.NewMemory() },
		kv.EnginePebble: func(t *testing.T) kv.Engine {
			e, err := kv.OpenPebble(t.TempDir())
			require.NoError(t, err)
			return e
		},
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			engine := factory(t)
			t.Cleanup(func() { _ = engine.Close() })
			s, err := NewStore(engine)
			require.NoError(t, err)
			fn(t, s)
		})
	}
}

func submission(name, owner string) Submission {
	return Submission{
		FileRef:     "https://files.example.com/" + name + ".zip",
		DisplayName: name,
		OwnerName:   "Owner " + owner,
		OwnerID:     owner,
	}
}

func mustCreate(t *testing.T, s *Store, sub Submission) string {
	t.Helper()
	id, err := s.Create(context.Background(), sub)
	require.NoError(t, err)
	return id
}

func createN(t *testing.T, s *Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, mustCreate(t, s, submission(fmt.Sprintf("project-%d", i), "owner-1")))
	}
	return ids
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// failingEngine wraps an engine and fails selected operations.
type failingEngine struct {
	kv.Engine
	failGet  bool
	failScan bool
	failCAS  bool
}

var errEngine = fmt.Errorf("disk on fire")

func (f *failingEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if f.failGet {
		return nil, errEngine
	}
	return f.Engine.Get(ctx, key)
}

func (f *failingEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	if f.failScan {
		return errEngine
	}
	return f.Engine.Scan(ctx, prefix, fn)
}

func (f *failingEngine) CompareAndSwap(ctx context.Context, key, expected, value []byte) (bool, error) {
	if f.failCAS {
		return false, errEngine
	}
	return f.Engine.CompareAndSwap(ctx, key, expected, value)
}
