// Package scheduler runs the periodic download-count reset.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule resets download counts every Sunday at midnight.
const DefaultSchedule = "@weekly"

// ErrNilResetter is returned by New when no resetter is given.
var ErrNilResetter = errors.New("resetter cannot be nil")

// Resetter zeroes every project's download counter.
type Resetter interface {
	ResetAllDownloadCounts(ctx context.Context) (int, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone schedules are evaluated in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithTimeout bounds a single reset run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// Scheduler triggers ResetAllDownloadCounts on a cron schedule. Runs never
// overlap: a tick that fires while the previous reset is still going is
// skipped.
type Scheduler struct {
	resetter Resetter
	spec     string
	logger   *zap.Logger
	location *time.Location
	timeout  time.Duration

	cron  *cron.Cron
	entry cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastN   int
}

// New creates a scheduler for spec, a standard five-field cron expression
// or a descriptor such as @weekly or @every 1h. An empty spec uses
// DefaultSchedule.
func New(resetter Resetter, spec string, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if resetter == nil {
		return nil, ErrNilResetter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = DefaultSchedule
	}

	s := &Scheduler{
		resetter: resetter,
		spec:     spec,
		logger:   logger,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", spec, err)
	}

	clog := cronLogger{logger: logger.Sugar()}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return nil, fmt.Errorf("schedule reset: %w", err)
	}
	s.entry = id
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("download reset scheduled",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.Next()))
}

// Stop halts the schedule and waits for an in-flight reset to finish or for
// ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow performs a reset immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := s.resetter.ResetAllDownloadCounts(ctx)
	if err != nil {
		return n, fmt.Errorf("reset download counts: %w", err)
	}

	s.mu.Lock()
	s.lastRun = start
	s.lastN = n
	s.mu.Unlock()
	return n, nil
}

// LastRun returns when the last successful reset started and how many
// projects it changed.
func (s *Scheduler) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastN
}

func (s *Scheduler) tick() {
	start := time.Now()
	n, err := s.RunNow(context.Background())
	if err != nil {
		s.logger.Error("scheduled download reset failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled download reset complete",
		zap.Int("reset", n),
		zap.Duration("duration", time.Since(start)))
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
