// Package scheduler triggers ingestion runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/pipeline"
)

// Trigger labels for run metrics.
const (
	TriggerCron     = "cron"
	TriggerInitial  = "initial"
	TriggerManual   = "manual"
	TriggerBackfill = "backfill"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Runner executes one ingestion pass.
type Runner interface {
	Run(ctx context.Context, seasons []int) (*pipeline.Report, error)
}

// Options configures the scheduler.
type Options struct {
	Spec       string
	Seasons    []int
	RunTimeout time.Duration
}

// Scheduler runs the pipeline on a cron schedule, one run at a time.
type Scheduler struct {
	runner Runner
	opts   Options
	cron   *cron.Cron

	running sync.Mutex
	stopped chan struct{}
	once    sync.Once
}

// New creates a scheduler. Overlapping cron ticks are skipped.
func New(runner Runner, opts Options) *Scheduler {
	logger := cronLogger{log.With().Str("component", "cron").Logger()}
	return &Scheduler{
		runner:  runner,
		opts:    opts,
		stopped: make(chan struct{}),
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start registers the ingestion job and starts the cron loop. Runs use ctx
// as their parent, so cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.opts.Spec, func() {
		if _, err := s.RunOnce(ctx, TriggerCron); err != nil && !errors.Is(err, ErrRunInProgress) {
			log.Error().Err(err).Msg("Scheduled ingestion failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.opts.Spec).
		Ints("seasons", s.opts.Seasons).
		Msg("Ingestion scheduled")

	return nil
}

// Stop stops the cron loop and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.once.Do(func() {
		log.Info().Msg("Stopping scheduler...")
		close(s.stopped)

		select {
		case <-s.cron.Stop().Done():
			log.Info().Msg("Scheduler stopped")
		case <-ctx.Done():
			log.Warn().Msg("Scheduler stop timed out with a run still active")
		}
	})
}

// RunOnce runs the pipeline for the configured seasons unless a run is
// already active.
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) (*pipeline.Report, error) {
	return s.RunSeasons(ctx, trigger, s.opts.Seasons)
}

// RunSeasons runs the pipeline for the given seasons unless a run is
// already active.
func (s *Scheduler) RunSeasons(ctx context.Context, trigger string, seasons []int) (*pipeline.Report, error) {
	select {
	case <-s.stopped:
		return nil, errors.New("scheduler stopped")
	default:
	}

	if !s.running.TryLock() {
		log.Warn().Str("trigger", trigger).Msg("Ingestion run skipped, previous run still active")
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	report, err := s.runner.Run(ctx, seasons)

	status := "failed"
	if report != nil {
		status = report.Outcome(err)
	}
	metrics.RecordRun(trigger, status, time.Since(start).Seconds())

	return report, err
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
