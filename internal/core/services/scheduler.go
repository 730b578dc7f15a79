package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
)

// Ensure ReindexScheduler implements the interface.
var _ driving.Scheduler = (*ReindexScheduler)(nil)

// ReindexScheduler runs a full reindex sweep on a cron schedule.
// It is a pure core service with no external control API.
type ReindexScheduler struct {
	expr    *cronexpr.Expression
	syncer  driving.SyncCoordinator
	timeout time.Duration
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	runs    int
}

// NewReindexScheduler parses schedule, a standard cron expression
// (five fields, or seven with seconds and years). timeout bounds each
// sweep; zero means no limit.
func NewReindexScheduler(schedule string, syncer driving.SyncCoordinator, timeout time.Duration) (*ReindexScheduler, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse reindex schedule %q: %w", schedule, err)
	}
	return &ReindexScheduler{
		expr:    expr,
		syncer:  syncer,
		timeout: timeout,
		now:     time.Now,
		after:   time.After,
	}, nil
}

// Start begins the scheduler loop in the background.
func (s *ReindexScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx, s.stopCh)
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a sweep in progress.
func (s *ReindexScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Runs returns the number of sweeps started.
func (s *ReindexScheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// run is the main scheduler loop. Sweeps run inline so they never overlap.
func (s *ReindexScheduler) run(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()
	for {
		next := s.expr.Next(s.now())
		if next.IsZero() {
			logger.Warn("scheduler: reindex schedule has no future runs")
			return
		}
		logger.Debug("scheduler: next reindex at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-s.after(next.Sub(s.now())):
			s.sweep(ctx)
		}
	}
}

func (s *ReindexScheduler) sweep(ctx context.Context) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.syncer.Reindex(ctx)
	if err != nil {
		logger.Error("scheduler: reindex failed: %v", err)
		return
	}
	if report.Failed > 0 {
		logger.Warn("scheduler: reindex finished with %d failures", report.Failed)
	}
}
