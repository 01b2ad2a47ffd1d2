package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/kv"
	"github.com/fyrsmithlabs/projectd/internal/logging"
)

const (
	projectsNamespace = "projects"
	bannedNamespace   = "bannedUsers"
)

var projectsPrefix = kv.Prefix(projectsNamespace)

// Limits configures pagination, search, and ranking sizes.
type Limits struct {
	PageSize        int
	MaxPageSize     int
	SearchLimit     int
	LeaderboardSize int
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		PageSize:        20,
		MaxPageSize:     100,
		SearchLimit:     25,
		LeaderboardSize: 10,
	}
}

// Store owns project records, the ID counter, and the ban list.
type Store struct {
	engine     kv.Engine
	allocator  *Allocator
	limits     Limits
	maxRetries int
	logger     *zap.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	publisher  Publisher
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLimits overrides pagination, search, and ranking sizes.
func WithLimits(limits Limits) Option {
	return func(s *Store) {
		s.limits = limits
	}
}

// WithMetrics records store metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

// WithMaxRetries bounds compare-and-swap retries per operation.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewStore creates a project store over engine.
func NewStore(engine kv.Engine, opts ...Option) (*Store, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	s := &Store{
		engine:     engine,
		limits:     DefaultLimits(),
		maxRetries: DefaultMaxRetries,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(InstrumentationName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.limits.validate(); err != nil {
		return nil, err
	}

	s.allocator = NewAllocator(engine, s.metrics)
	s.allocator.maxRetries = s.maxRetries
	return s, nil
}

func (l Limits) validate() error {
	switch {
	case l.PageSize <= 0:
		return fmt.Errorf("page size must be positive, got %d", l.PageSize)
	case l.MaxPageSize < l.PageSize:
		return fmt.Errorf("max page size %d is below page size %d", l.MaxPageSize, l.PageSize)
	case l.SearchLimit <= 0:
		return fmt.Errorf("search limit must be positive, got %d", l.SearchLimit)
	case l.LeaderboardSize <= 0:
		return fmt.Errorf("leaderboard size must be positive, got %d", l.LeaderboardSize)
	}
	return nil
}

// Allocator returns the store's ID allocator.
func (s *Store) Allocator() *Allocator {
	return s.allocator
}

// Limits returns the configured limits.
func (s *Store) Limits() Limits {
	return s.limits
}

// Create stores a new project owned by sub.OwnerID and returns its ID.
func (s *Store) Create(ctx context.Context, sub Submission) (id string, err error) {
	ctx, span := s.start(ctx, "project.Create", attribute.String("owner_id", sub.OwnerID))
	defer func() { finish(span, err) }()

	if err := sub.Validate(); err != nil {
		return "", err
	}

	banned, err := s.IsBanned(ctx, sub.OwnerID)
	if err != nil {
		return "", err
	}
	if banned {
		s.metrics.rejection(ctx, "banned")
		return "", fmt.Errorf("%w: %s", ErrForbidden, sub.OwnerID)
	}

	n, err := s.allocator.Allocate(ctx)
	if err != nil {
		return "", err
	}

	p := newProject(n, sub)
	data, err := encodeProject(p)
	if err != nil {
		return "", err
	}

	ok, err := s.engine.CompareAndSwap(ctx, projectKey(p.ID), nil, data)
	if err != nil {
		return "", fmt.Errorf("%w: save project %s: %v", ErrStorage, p.ID, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrExists, p.ID)
	}

	s.metrics.projectCreated(ctx)
	s.log(ctx).Info("project created",
		zap.String("project_id", p.ID),
		zap.String("owner_id", p.OwnerID),
		zap.Bool("verified", p.Verified))
	s.notify(ctx, Event{Type: EventCreated, ProjectID: p.ID, OwnerID: p.OwnerID})

	return p.ID, nil
}

// Get returns the project stored under id.
func (s *Store) Get(ctx context.Context, id string) (p *Project, err error) {
	ctx, span := s.start(ctx, "project.Get", attribute.String("project_id", id))
	defer func() { finish(span, err) }()

	p, _, err = s.load(ctx, id)
	return p, err
}

// Info returns the public view of the project stored under id.
func (s *Store) Info(ctx context.Context, id string) (*Info, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info := p.Info()
	return &info, nil
}

// Rename overwrites the display name of a project.
func (s *Store) Rename(ctx context.Context, id, newName string) (err error) {
	ctx, span := s.start(ctx, "project.Rename", attribute.String("project_id", id))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(newName) == "" {
		return invalid(ErrEmptyNewName)
	}

	p, changed, err := s.update(ctx, id, func(p *Project) bool {
		if p.DisplayName == newName {
			return false
		}
		p.DisplayName = newName
		return true
	})
	if err != nil || !changed {
		return err
	}

	s.log(ctx).Info("project renamed", zap.String("project_id", id))
	s.notify(ctx, Event{Type: EventRenamed, ProjectID: id, OwnerID: p.OwnerID})
	return nil
}

// Verify marks a project as verified. Verifying twice is a no-op.
func (s *Store) Verify(ctx context.Context, id string) (err error) {
	ctx, span := s.start(ctx, "project.Verify", attribute.String("project_id", id))
	defer func() { finish(span, err) }()

	p, changed, err := s.update(ctx, id, func(p *Project) bool {
		if p.Verified {
			return false
		}
		p.Verified = true
		return true
	})
	if err != nil || !changed {
		return err
	}

	s.log(ctx).Info("project verified", zap.String("project_id", id))
	s.notify(ctx, Event{Type: EventVerified, ProjectID: id, OwnerID: p.OwnerID})
	return nil
}

// IncrementDownload adds one to a project's download counter and returns the
// new count. A missing project is reported as ErrNotFound and no record is
// created.
func (s *Store) IncrementDownload(ctx context.Context, id string) (count uint64, err error) {
	ctx, span := s.start(ctx, "project.IncrementDownload", attribute.String("project_id", id))
	defer func() { finish(span, err) }()

	p, _, err := s.update(ctx, id, func(p *Project) bool {
		p.DownloadCount++
		return true
	})
	if err != nil {
		return 0, err
	}

	s.metrics.downloadRecorded(ctx)
	return p.DownloadCount, nil
}

// Delete removes a project when callerID is its owner.
func (s *Store) Delete(ctx context.Context, id, callerID string) (err error) {
	ctx, span := s.start(ctx, "project.Delete", attribute.String("project_id", id))
	defer func() { finish(span, err) }()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		p, raw, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if callerID == "" || callerID != p.OwnerID {
			s.metrics.rejection(ctx, "not_owner")
			return fmt.Errorf("%w: project %s", ErrUnauthorized, id)
		}

		ok, err := s.engine.CompareAndSwap(ctx, projectKey(id), raw, nil)
		if err != nil {
			return fmt.Errorf("%w: delete project %s: %v", ErrStorage, id, err)
		}
		if ok {
			s.metrics.projectsDeleted(ctx, 1)
			s.log(ctx).Info("project deleted", zap.String("project_id", id), zap.String("owner_id", p.OwnerID))
			s.notify(ctx, Event{Type: EventDeleted, ProjectID: id, OwnerID: p.OwnerID})
			return nil
		}
		s.metrics.updateRetry(ctx)
	}
	return fmt.Errorf("%w: project %s", ErrContention, id)
}

// ResetAllDownloadCounts sets every project's download counter to zero and
// returns how many records changed. Each record is reset through the same
// compare-and-swap path as IncrementDownload.
func (s *Store) ResetAllDownloadCounts(ctx context.Context) (reset int, err error) {
	ctx, span := s.start(ctx, "project.ResetAllDownloadCounts")
	defer func() { finish(span, err) }()

	ids, err := s.scanIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		_, changed, err := s.update(ctx, id, func(p *Project) bool {
			if p.DownloadCount == 0 {
				return false
			}
			p.DownloadCount = 0
			return true
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return reset, err
		}
		if changed {
			reset++
		}
	}

	s.log(ctx).Info("download counts reset", zap.Int("projects", len(ids)), zap.Int("changed", reset))
	s.notify(ctx, Event{Type: EventDownloadsReset, Count: reset})
	return reset, nil
}

// PurgeAll deletes every project and resets the ID counter. The ban list is
// left untouched.
func (s *Store) PurgeAll(ctx context.Context) (deleted int, err error) {
	ctx, span := s.start(ctx, "project.PurgeAll")
	defer func() { finish(span, err) }()

	ids, err := s.scanIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.engine.Delete(ctx, projectKey(id)); err != nil {
			s.metrics.projectsDeleted(ctx, deleted)
			return deleted, fmt.Errorf("%w: purge project %s: %v", ErrStorage, id, err)
		}
		deleted++
	}
	s.metrics.projectsDeleted(ctx, deleted)

	if err := s.allocator.Reset(ctx); err != nil {
		return deleted, err
	}

	s.log(ctx).Warn("all projects purged", zap.Int("deleted", deleted))
	s.notify(ctx, Event{Type: EventPurged, Count: deleted})
	return deleted, nil
}

// load reads and decodes a project together with its raw stored image.
func (s *Store) load(ctx context.Context, id string) (*Project, []byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, invalid(ErrEmptyProjectID)
	}

	raw, err := s.engine.Get(ctx, projectKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read project %s: %v", ErrStorage, id, err)
	}

	p, err := decodeProject(id, raw)
	if err != nil {
		return nil, nil, err
	}
	return p, raw, nil
}

// update applies mutate to the stored project under a compare-and-swap
// loop. mutate reports whether it changed anything; unchanged records are
// not rewritten and written is false. The returned project is the current
// stored image.
func (s *Store) update(ctx context.Context, id string, mutate func(*Project) bool) (*Project, bool, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		p, raw, err := s.load(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !mutate(p) {
			return p, false, nil
		}

		data, err := encodeProject(p)
		if err != nil {
			return nil, false, err
		}

		ok, err := s.engine.CompareAndSwap(ctx, projectKey(id), raw, data)
		if err != nil {
			return nil, false, fmt.Errorf("%w: update project %s: %v", ErrStorage, id, err)
		}
		if ok {
			return p, true, nil
		}
		s.metrics.updateRetry(ctx)
	}
	return nil, false, fmt.Errorf("%w: project %s", ErrContention, id)
}

// scanIDs returns the IDs of every stored project.
func (s *Store) scanIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.engine.Scan(ctx, projectsPrefix, func(key, _ []byte) error {
		ids = append(ids, kv.TrimPrefix(key, projectsPrefix))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan projects: %v", ErrStorage, err)
	}
	return ids, nil
}

func (s *Store) notify(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx).Warn("failed to publish project event",
			zap.String("type", string(event.Type)),
			zap.String("project_id", event.ProjectID),
			zap.Error(err))
	}
}

// log returns the store logger carrying the request, caller and trace
// fields of ctx.
func (s *Store) log(ctx context.Context) *zap.Logger {
	fields := logging.ContextFields(ctx)
	if len(fields) == 0 {
		return s.logger
	}
	return s.logger.With(fields...)
}

func (s *Store) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish records err on span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func projectKey(id string) []byte {
	return kv.Key(projectsNamespace, id)
}
