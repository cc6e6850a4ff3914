// Package scheduler runs the time-driven billing jobs: the daily isolation
// sweep and, when configured, monthly invoice generation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds a single run of either job
const jobTimeout = 10 * time.Minute

// Sweeper runs the isolation sweep
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
}

// Generator runs bulk invoice generation
type Generator interface {
	Generate(ctx context.Context) (*service.GenerationResult, error)
}

// BillingScheduler owns the cron entries of the billing jobs
type BillingScheduler struct {
	sweeper      Sweeper
	generator    Generator
	cron         *cron.Cron
	logger       *zap.Logger
	generateSpec string

	mu          sync.Mutex
	running     bool
	sweepEntry  cron.EntryID
	isolateTime string
}

// New creates a BillingScheduler. Schedules are read in loc. An empty
// generateSpec leaves invoice generation to the API.
func New(sweeper Sweeper, generator Generator, loc *time.Location, isolateTime, generateSpec string) *BillingScheduler {
	return &BillingScheduler{
		sweeper:   sweeper,
		generator: generator,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:       zap.L().With(zap.String("component", "scheduler")),
		generateSpec: generateSpec,
		isolateTime:  isolateTime,
	}
}

// dailySpec turns "HH:MM" into a five-field cron spec
func dailySpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", errors.Newf("isolation time must be HH:MM, got %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Start registers the jobs and starts the cron runner
func (s *BillingScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("billing scheduler already running")
	}

	spec, err := dailySpec(s.isolateTime)
	if err != nil {
		return err
	}
	if s.sweepEntry, err = s.cron.AddFunc(spec, s.runSweep); err != nil {
		return errors.Wrap(err, "schedule isolation sweep")
	}
	if s.generateSpec != "" {
		if _, err := s.cron.AddFunc(s.generateSpec, s.runGenerate); err != nil {
			return errors.Wrapf(err, "schedule invoice generation %q", s.generateSpec)
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("billing scheduler started",
		zap.String("isolation_time", s.isolateTime),
		zap.String("generate_spec", s.generateSpec),
	)
	return nil
}

// Stop stops the scheduler; the returned context is done when running jobs finish
func (s *BillingScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.logger.Info("stopping billing scheduler")
	return s.cron.Stop()
}

// IsolationTimeChanged moves the daily sweep to hhmm
func (s *BillingScheduler) IsolationTimeChanged(hhmm string) error {
	spec, err := dailySpec(hhmm)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.isolateTime = hhmm
		return nil
	}
	id, err := s.cron.AddFunc(spec, s.runSweep)
	if err != nil {
		return errors.Wrap(err, "reschedule isolation sweep")
	}
	if s.sweepEntry != 0 {
		s.cron.Remove(s.sweepEntry)
	}
	s.sweepEntry = id
	s.isolateTime = hhmm
	s.logger.Info("isolation sweep rescheduled", zap.String("isolation_time", hhmm))
	return nil
}

// NextSweep reports when the isolation sweep runs next (zero when not started)
func (s *BillingScheduler) NextSweep() time.Time {
	s.mu.Lock()
	id := s.sweepEntry
	s.mu.Unlock()
	return s.cron.Entry(id).Next
}

// RunSweepNow triggers an immediate sweep
func (s *BillingScheduler) RunSweepNow() {
	s.runSweep()
}

// RunGenerateNow triggers an immediate generation run
func (s *BillingScheduler) RunGenerateNow() {
	s.runGenerate()
}

func (s *BillingScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Info("starting isolation sweep")
	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("isolation sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("isolation sweep completed",
		zap.String("date", res.Date),
		zap.Bool("enabled", res.Enabled),
		zap.Int("reminders", res.Reminders),
		zap.Int("targets", len(res.Targets)),
		zap.Int("isolated", len(res.Isolated)),
	)
}

func (s *BillingScheduler) runGenerate() {
	if s.generator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Info("starting scheduled invoice generation")
	res, err := s.generator.Generate(ctx)
	if err != nil {
		s.logger.Error("scheduled invoice generation failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled invoice generation completed",
		zap.String("period", res.Period),
		zap.Int("created", res.Count),
		zap.Int("skipped", len(res.Skipped)),
	)
}
