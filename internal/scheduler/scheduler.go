package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"vedtak/internal/config"
	"vedtak/internal/service"

	"github.com/robfig/cron/v3"
)

// OutboxJobs is the part of the outbox dispatcher the scheduler drives
type OutboxJobs interface {
	Drain(ctx context.Context) (int, error)
	RecordBacklog(ctx context.Context) error
}

// PausedRunResumer resumes automatic runs left in the PAUSED phase
type PausedRunResumer interface {
	ResumePaused(ctx context.Context, limit, parallelism int) ([]service.RunOutcome, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	cron    *cron.Cron
	outbox  OutboxJobs
	resumer PausedRunResumer
	config  *config.SchedulerConfig

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler
func NewScheduler(outbox OutboxJobs, resumer PausedRunResumer, cfg *config.SchedulerConfig) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		outbox:  outbox,
		resumer: resumer,
		config:  cfg,
	}
}

// Start registers the enabled tasks and starts the cron loop. Tasks run
// with a context derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("Starting scheduler",
		"outbox_drain_enabled", s.config.EnableOutboxDrain,
		"resume_paused_enabled", s.config.EnableResumePaused)

	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.config.EnableOutboxDrain && s.outbox != nil {
		if err := s.startCronTask(s.config.OutboxDrainCron, "outbox_drain", s.drainOutbox); err != nil {
			return err
		}
	}

	if s.outbox != nil && s.config.OutboxGaugeCron != "" {
		if err := s.startCronTask(s.config.OutboxGaugeCron, "outbox_backlog", s.recordOutboxBacklog); err != nil {
			return err
		}
	}

	if s.config.EnableResumePaused && s.resumer != nil {
		if err := s.startCronTask(s.config.ResumePausedRunsCron, "resume_paused_runs", s.resumePausedRuns); err != nil {
			return err
		}
	}

	s.cron.Start()
	slog.Info("Scheduler started", "tasks", len(s.cron.Entries()))
	return nil
}

// startCronTask parses a cron expression and registers the task.
// Accepts five-field expressions ("0 2 * * *") and descriptors ("@every 30s").
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func(context.Context)) error {
	_, err := s.cron.AddFunc(cronExpr, func() {
		start := time.Now()
		slog.Debug("Running scheduled task", "task", taskName)
		task(s.ctx)
		slog.Debug("Scheduled task finished", "task", taskName, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression for %s: %w", taskName, err)
	}
	slog.Info("Scheduled task registered", "task", taskName, "schedule", cronExpr)
	return nil
}

// Stop stops the scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping scheduler")
		if s.cancel != nil {
			s.cancel()
		}
		<-s.cron.Stop().Done()
		slog.Info("Scheduler stopped")
	})
}

// drainOutbox backs up the dispatcher's own poll loop
func (s *Scheduler) drainOutbox(ctx context.Context) {
	n, err := s.outbox.Drain(ctx)
	if err != nil {
		slog.Error("Scheduled outbox drain failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Scheduled outbox drain completed", "processed", n)
	}
}

func (s *Scheduler) recordOutboxBacklog(ctx context.Context) {
	if err := s.outbox.RecordBacklog(ctx); err != nil {
		slog.Error("Failed to record outbox backlog", "error", err)
	}
}

// resumePausedRuns attests the decisions paused by an earlier RUN_THEN_PAUSE batch
func (s *Scheduler) resumePausedRuns(ctx context.Context) {
	slog.Info("Resuming paused automatic runs")

	if s.config.ResumeAttemptDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ResumeAttemptDeadline)
		defer cancel()
	}

	outcomes, err := s.resumer.ResumePaused(ctx, s.config.ResumeBatchSize, s.config.ResumeParallelism)
	if err != nil {
		slog.Error("Failed to resume paused runs", "error", err, "attempted", len(outcomes))
		return
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			slog.Warn("Paused run could not be resumed", "case_instance_id", o.CaseInstanceID, "error", o.Err)
		}
	}
	slog.Info("Paused runs resumed", "resumed", len(outcomes)-failed, "failed", failed)
}
