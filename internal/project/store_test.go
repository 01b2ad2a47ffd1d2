package project

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/projectd/internal/kv"
	"github.com/fyrsmithlabs/projectd/internal/logging"
)

func TestNewStore(t *testing.T) {
	t.Run("nil engine", func(t *testing.T) {
		_, err := NewStore(nil)
		assert.Error(t, err)
	})

	t.Run("invalid limits", func(t *testing.T) {
		tests := []struct {
			name   string
			limits Limits
		}{
			{"zero page size", Limits{PageSize: 0, MaxPageSize: 10, SearchLimit: 1, LeaderboardSize: 1}},
			{"max below page size", Limits{PageSize: 20, MaxPageSize: 10, SearchLimit: 1, LeaderboardSize: 1}},
			{"zero search limit", Limits{PageSize: 1, MaxPageSize: 1, SearchLimit: 0, LeaderboardSize: 1}},
			{"zero leaderboard", Limits{PageSize: 1, MaxPageSize: 1, SearchLimit: 1, LeaderboardSize: 0}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewStore(kv.NewMemory(), WithLimits(tt.limits))
				assert.Error(t, err)
			})
		}
	})

	t.Run("defaults", func(t *testing.T) {
		s := newTestStore(t)
		assert.Equal(t, DefaultLimits(), s.Limits())
		assert.NotNil(t, s.Allocator())
	})
}

func TestStore_CreateThenGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sub := Submission{
		FileRef:      "https://files.example.com/a.zip",
		DisplayName:  "Alpha",
		OwnerName:    "alice",
		OwnerID:      "u-1",
		Verified:     true,
		ContactEmail: "alice@example.com",
	}
	id, err := s.Create(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, "0", id)

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &Project{
		ID:            "0",
		FileRef:       sub.FileRef,
		DisplayName:   sub.DisplayName,
		OwnerName:     sub.OwnerName,
		OwnerID:       sub.OwnerID,
		Verified:      true,
		ContactEmail:  sub.ContactEmail,
		DownloadCount: 0,
	}, p)

	id2, err := s.Create(ctx, submission("Beta", "u-2"))
	require.NoError(t, err)
	assert.Equal(t, "1", id2)
}

func TestStore_CreateValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name   string
		mutate func(*Submission)
		cause  error
	}{
		{"missing file ref", func(sub *Submission) { sub.FileRef = "" }, ErrEmptyFileRef},
		{"missing name", func(sub *Submission) { sub.DisplayName = "  " }, ErrEmptyName},
		{"missing owner name", func(sub *Submission) { sub.OwnerName = "" }, ErrEmptyOwnerName},
		{"missing owner id", func(sub *Submission) { sub.OwnerID = "" }, ErrEmptyOwnerID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := submission("x", "u-1")
			tt.mutate(&sub)
			_, err := s.Create(ctx, sub)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorIs(t, err, tt.cause)
		})
	}

	// Rejected submissions must not consume IDs.
	next, err := s.Allocator().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), next)
}

func TestStore_CreateStorageFailure(t *testing.T) {
	engine := &failingEngine{Engine: kv.NewMemory(), failGet: true}
	s, err := NewStore(engine)
	require.NoError(t, err)

	_, err = s.Create(context.Background(), submission("x", "u-1"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.False(t, errors.Is(err, ErrInvalidInput))
}

func TestStore_CreateRejectsOccupiedID(t *testing.T) {
	ctx := context.Background()
	engine := kv.NewMemory()
	s, err := NewStore(engine)
	require.NoError(t, err)

	// A record left behind under the next ID must not be overwritten.
	require.NoError(t, engine.Set(ctx, projectKey("0"), []byte(`{"displayName":"squatter"}`)))

	_, err = s.Create(ctx, submission("x", "u-1"))
	assert.ErrorIs(t, err, ErrExists)

	p, err := s.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "squatter", p.DisplayName)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "42")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_Info(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sub := submission("Alpha", "u-1")
	sub.ContactEmail = "a@example.com"
	id := mustCreate(t, s, sub)

	info, err := s.Info(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &Info{
		ID:          id,
		DisplayName: "Alpha",
		OwnerName:   "Owner u-1",
		OwnerID:     "u-1",
	}, info)

	_, err = s.Info(ctx, "99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Rename(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreate(t, s, submission("Alpha", "u-1"))

	require.NoError(t, s.Rename(ctx, id, "Alpha II"))
	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha II", p.DisplayName)

	err = s.Rename(ctx, id, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ErrEmptyNewName)
	assert.EqualError(t, err, "newName is required")
	assert.ErrorIs(t, s.Rename(ctx, "99", "x"), ErrNotFound)
}

func TestStore_UnchangedUpdatesPublishNothing(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newTestStore(t, WithPublisher(pub))
	id := mustCreate(t, s, submission("Alpha", "u-1"))

	require.NoError(t, s.Verify(ctx, id))
	require.NoError(t, s.Verify(ctx, id))
	require.NoError(t, s.Rename(ctx, id, "Beta"))
	require.NoError(t, s.Rename(ctx, id, "Beta"))

	assert.Equal(t, []EventType{EventCreated, EventVerified, EventRenamed}, pub.types())
}

func TestStore_Verify(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreate(t, s, submission("Alpha", "u-1"))

	require.NoError(t, s.Verify(ctx, id))
	require.NoError(t, s.Verify(ctx, id))

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Verified)

	assert.ErrorIs(t, s.Verify(ctx, "99"), ErrNotFound)
}

func TestStore_IncrementDownload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreate(t, s, submission("Alpha", "u-1"))

	const k = 7
	for i := 1; i <= k; i++ {
		n, err := s.IncrementDownload(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), n)
	}

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(k), p.DownloadCount)
}

func TestStore_IncrementDownloadMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.IncrementDownload(ctx, "5")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "5")
	assert.ErrorIs(t, err, ErrNotFound, "increment must not create a record")
}

func TestStore_IncrementDownloadConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreate(t, s, submission("Alpha", "u-1"))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementDownload(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), p.DownloadCount)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreate(t, s, submission("Alpha", "owner"))

	err := s.Delete(ctx, id, "intruder")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Get(ctx, id)
	require.NoError(t, err, "rejected delete must leave the record intact")

	err = s.Delete(ctx, id, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, s.Delete(ctx, id, "owner"))
	assert.ErrorIs(t, s.Delete(ctx, id, "owner"), ErrNotFound)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteStorageFailureLeavesRecord(t *testing.T) {
	ctx := context.Background()
	engine := &failingEngine{Engine: kv.NewMemory()}
	s, err := NewStore(engine)
	require.NoError(t, err)
	id := mustCreate(t, s, submission("Alpha", "owner"))

	engine.failCAS = true
	assert.ErrorIs(t, s.Delete(ctx, id, "owner"), ErrStorage)

	engine.failCAS = false
	_, err = s.Get(ctx, id)
	assert.NoError(t, err)
}

func TestStore_ResetAllDownloadCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ids := createN(t, s, 3)

	for i := 0; i < 3; i++ {
		_, err := s.IncrementDownload(ctx, ids[0])
		require.NoError(t, err)
	}
	_, err := s.IncrementDownload(ctx, ids[2])
	require.NoError(t, err)

	reset, err := s.ResetAllDownloadCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reset)

	for _, id := range ids {
		p, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, p.DownloadCount)
	}

	reset, err = s.ResetAllDownloadCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, reset)
}

func TestStore_ResetDuringConcurrentIncrements(t *testing.T) {
	const n = 100

	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id := mustCreate(t, s, submission("Alpha", "u-1"))

		start := make(chan struct{})
		counts := make([]uint64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				c, err := s.IncrementDownload(ctx, id)
				assert.NoError(t, err)
				counts[i] = c
			}(i)
		}

		var reset int
		var resetErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			reset, resetErr = s.ResetAllDownloadCounts(ctx)
		}()

		close(start)
		wg.Wait()
		require.NoError(t, resetErr)

		p, err := s.Get(ctx, id)
		require.NoError(t, err)
		final := int(p.DownloadCount)
		require.LessOrEqual(t, final, n)

		// The writes linearize as k increments, the reset, then n-k
		// increments. Those return 1..k and 1..n-k, and the stored count is
		// n-k. A stale image written back by the reset breaks this.
		before := n - final
		want := make(map[uint64]int)
		for v := 1; v <= before; v++ {
			want[uint64(v)]++
		}
		for v := 1; v <= final; v++ {
			want[uint64(v)]++
		}
		got := make(map[uint64]int)
		for _, c := range counts {
			got[c]++
		}
		assert.Equal(t, want, got)

		if before > 0 {
			assert.Equal(t, 1, reset)
		} else {
			assert.Zero(t, reset)
		}
	})
}

func TestStore_LogsCarryContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := newTestStore(t, WithLogger(zap.New(core)))

	ctx := logging.WithRequestID(context.Background(), "req-42")
	ctx = logging.WithCallerID(ctx, "u-1")

	id, err := s.Create(ctx, submission("Alpha", "u-1"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id, "u-1"))

	for _, msg := range []string{"project created", "project deleted"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-42", fields["request.id"], msg)
		assert.Equal(t, "u-1", fields["caller.id"], msg)
	}
}

func TestStore_PurgeAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	createN(t, s, 4)
	require.NoError(t, s.Ban(ctx, "troll"))

	deleted, err := s.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)

	page, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Projects)
	assert.Zero(t, page.Total)

	id, err := s.Allocator().Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	banned, err := s.IsBanned(ctx, "troll")
	require.NoError(t, err)
	assert.True(t, banned, "purge must not touch the ban list")
}

func TestStore_PurgeAllThenCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	createN(t, s, 2)

	_, err := s.PurgeAll(ctx)
	require.NoError(t, err)

	id := mustCreate(t, s, submission("fresh", "u-1"))
	assert.Equal(t, "0", id)
}

func TestStore_Events(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newTestStore(t, WithPublisher(pub))

	id := mustCreate(t, s, submission("Alpha", "owner"))
	require.NoError(t, s.Rename(ctx, id, "Beta"))
	require.NoError(t, s.Verify(ctx, id))
	_, err := s.ResetAllDownloadCounts(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id, "owner"))
	_, err = s.PurgeAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventCreated,
		EventRenamed,
		EventVerified,
		EventDownloadsReset,
		EventDeleted,
		EventPurged,
	}, pub.types())

	for _, e := range pub.events {
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, id, pub.events[0].ProjectID)
	assert.Equal(t, "owner", pub.events[0].OwnerID)
}

func TestStore_PublishFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newTestStore(t, WithPublisher(pub), WithLogger(zap.New(core)))

	id := mustCreate(t, s, submission("Alpha", "owner"))
	assert.Equal(t, "0", id, "publish failures must not fail the operation")

	entries := logs.FilterMessage("failed to publish project event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "created", entries[0].ContextMap()["type"])
}

func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, submission("Alpha", "owner"))
	assert.Error(t, err)
}
