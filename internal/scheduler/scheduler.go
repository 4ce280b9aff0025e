// Package scheduler runs plans on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mgrevis/gridplan/pkg/schema"
)

// PlanRunner is the interface the scheduler uses to run plans.
// Satisfied by the engine runner wrapped with its external continuation.
type PlanRunner interface {
	RunPlan(ctx context.Context, plan *schema.PlanDefinition) error
}

// job is one scheduled plan with its parsed cron schedule.
type job struct {
	name     string
	spec     string
	plan     *schema.PlanDefinition
	schedule cron.Schedule
	nextRun  time.Time
}

// Scheduler polls its jobs and runs those that are due.
type Scheduler struct {
	runner   PlanRunner
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	jobs   []*job
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)
}

// New creates a Scheduler polling at the given interval (0 means 60s).
func New(runner PlanRunner, logger *slog.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		interval: interval,
		inflight: make(map[string]struct{}),
	}
}

// Add registers a plan under a cron spec. Fails on an unparsable spec or a
// duplicate job name.
func (s *Scheduler) Add(name, spec string, plan *schema.PlanDefinition) error {
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"parse cron expression %q for job %q: %s", spec, name, err.Error()).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.name == name {
			return schema.NewErrorf(schema.ErrCodeValidation, "job %q already scheduled", name)
		}
	}
	s.jobs = append(s.jobs, &job{
		name:     name,
		spec:     spec,
		plan:     plan,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now()),
	})
	return nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Duration("poll_interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx, time.Now())
		}
	}
}

// runDue runs every job whose next-run time has passed.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if !j.nextRun.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		if !s.tryAcquire(j.name) {
			continue // already running (dedup)
		}
		s.runJob(ctx, j, now)
		s.release(j.name)
	}
}

// runJob executes one scheduled plan and advances its next-run time.
func (s *Scheduler) runJob(ctx context.Context, j *job, now time.Time) {
	s.logger.Info("running scheduled plan",
		slog.String("job", j.name),
		slog.String("cron", j.spec),
	)

	if err := s.runner.RunPlan(ctx, j.plan); err != nil {
		s.logger.Error("scheduled plan failed",
			slog.String("job", j.name),
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	j.nextRun = j.schedule.Next(now)
	s.mu.Unlock()
}

// tryAcquire returns true and marks the job as in-flight if it is not
// already running.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

// release removes the job from the in-flight set.
func (s *Scheduler) release(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// Stop gracefully shuts down the scheduler, waiting for the loop to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
