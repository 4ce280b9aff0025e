package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mgrevis/gridplan/internal/logging"
	"github.com/mgrevis/gridplan/internal/network"
	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

// Runner is the top-level plan driver: it materializes every network the
// plan declares, then executes the plan's top-level steps in order, stopping
// at the first failure.
type Runner struct {
	ws     *workspace.Workspace
	nets   *network.Registry
	exec   *Executor
	logger *slog.Logger
}

// NewRunner creates a Runner over a workspace and network registry.
func NewRunner(ws *workspace.Workspace, nets *network.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ws:     ws,
		nets:   nets,
		exec:   NewExecutor(ws, nets, logger),
		logger: logger,
	}
}

// Run executes a plan to completion. external constrains every step's loop
// in addition to the step's own policy; nil means unconstrained. Timing of
// each step and of the whole run is logged but never affects control flow.
func (r *Runner) Run(ctx context.Context, plan *schema.PlanDefinition, external Continuation) error {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	r.logger.InfoContext(ctx, "started executing plan", slog.String("plan", plan.Name))

	if len(plan.ExecutionStep) == 0 {
		r.logger.WarnContext(ctx, "nothing to run, did you define a correct plan?")
		return nil
	}

	r.logger.InfoContext(ctx, "initializing networks", slog.Int("count", len(plan.Networks)))
	for _, def := range plan.Networks {
		if _, err := r.nets.Create(def); err != nil {
			r.logger.ErrorContext(ctx, "failed initializing the networks",
				slog.String("network", def.Name), slog.String("error", err.Error()))
			return err
		}
	}

	planStart := time.Now()
	for i := range plan.ExecutionStep {
		step := &plan.ExecutionStep[i]
		stepStart := time.Now()
		if err := r.exec.ExecuteStep(ctx, step, external); err != nil {
			r.logger.ErrorContext(ctx, "step failed",
				slog.String("step", step.Name), slog.String("error", err.Error()))
			return err
		}
		r.logger.InfoContext(ctx, "step finished",
			slog.String("step", step.Name),
			slog.Duration("took", time.Since(stepStart)))
	}

	r.logger.InfoContext(ctx, "plan executed successfully",
		slog.Duration("took", time.Since(planStart)))
	return nil
}
