// Package server runs evaluation runs on an interval and serves their results
// over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/observability"
	"holder-tiers/internal/pipeline"
)

// ErrRunInFlight is returned when a run is requested while another is running.
var ErrRunInFlight = errors.New("run already in flight")

// Runner executes one run.
type Runner interface {
	Run(ctx context.Context, rc domain.RunContext) (*pipeline.Output, error)
	Mode() string
}

var _ Runner = (*pipeline.Runner)(nil)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Runner        Runner
	Interval      time.Duration // between runs
	RetryInterval time.Duration // after a retry failure
	Metrics       *observability.Metrics
	Clock         func() time.Time
	NewRunID      func() string
	Logger        *zap.Logger
}

// Scheduler owns the RunContext and runs the pipeline immediately, then on an
// interval. Overlapping runs are skipped.
type Scheduler struct {
	runner        Runner
	interval      time.Duration
	retryInterval time.Duration
	metrics       *observability.Metrics
	clock         func() time.Time
	newRunID      func() string
	logger        *zap.Logger
	trigger       chan struct{}

	mu    sync.Mutex
	state domain.RunContext
	last  *pipeline.Output
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		runner:        opts.Runner,
		interval:      opts.Interval,
		retryInterval: opts.RetryInterval,
		metrics:       opts.Metrics,
		clock:         opts.Clock,
		newRunID:      opts.NewRunID,
		logger:        opts.Logger,
		trigger:       make(chan struct{}, 1),
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.retryInterval <= 0 {
		s.retryInterval = s.interval
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	if s.newRunID == nil {
		s.newRunID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Start runs until ctx is cancelled. It always returns a non-nil error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		zap.String("mode", s.runner.Mode()),
		zap.Duration("interval", s.interval),
		zap.Duration("retry_interval", s.retryInterval))

	for {
		_, err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := s.NextDelay(err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
			s.logger.Info("run triggered")
		}
	}
}

// NextDelay returns how long to wait after a run that returned err.
func (s *Scheduler) NextDelay(err error) time.Duration {
	if errors.Is(err, pipeline.ErrRetryFailure) {
		return s.retryInterval
	}
	return s.interval
}

// Trigger asks the Start loop to run now. It returns ErrRunInFlight while a
// run is executing; a second trigger before the loop wakes is merged.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	inFlight := s.state.InFlight
	s.mu.Unlock()
	if inFlight {
		return ErrRunInFlight
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

// RunOnce executes a single run with a fresh run ID.
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.Output, error) {
	s.mu.Lock()
	if s.state.InFlight {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RunsSkipped.Inc()
		}
		s.logger.Warn("run already in flight, skipping")
		return nil, ErrRunInFlight
	}
	s.state.InFlight = true
	s.state.RunID = s.newRunID()
	s.state.StartedAt = s.clock()
	rc := s.state
	s.mu.Unlock()

	out, err := s.runner.Run(ctx, rc)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.state.InFlight = false
	s.state.Runs++
	if err != nil {
		s.state.LastFailure = now
		s.state.LastError = err.Error()
		s.state.ConsecutiveFailures++
		return nil, err
	}
	s.state.LastSuccess = now
	s.state.LastError = ""
	s.state.ConsecutiveFailures = 0
	s.last = out
	return out, nil
}

// Status returns a copy of the RunContext.
func (s *Scheduler) Status() domain.RunContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the output of the last successful run, or nil.
func (s *Scheduler) Latest() *pipeline.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Mode returns the runner's mode.
func (s *Scheduler) Mode() string { return s.runner.Mode() }
