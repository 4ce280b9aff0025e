// Package engine is the plan-execution core: recursive step scheduling under
// iteration and looping policies, concurrent substep fan-out with
// first-failure-wins semantics, and background progress reporting.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mgrevis/gridplan/internal/logging"
	"github.com/mgrevis/gridplan/internal/network"
	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

// Executor runs execution-step trees against a workspace and a network
// registry. It never mutates the registry; steps only look up networks
// registered before the plan started.
type Executor struct {
	ws     *workspace.Workspace
	nets   *network.Registry
	logger *slog.Logger
}

// NewExecutor creates an Executor bound to a workspace and network registry.
func NewExecutor(ws *workspace.Workspace, nets *network.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{ws: ws, nets: nets, logger: logger}
}

// ExecuteStep runs one execution-step node to completion. external is the
// caller's continuation predicate, ANDed with the step's own policy; nil
// means no external constraint. A nil return means the step succeeded; a
// false continuation on the very first pass is a trivially successful step,
// not an error.
func (e *Executor) ExecuteStep(ctx context.Context, step *schema.StepDefinition, external Continuation) error {
	if external == nil {
		external = Always
	}
	ctx = logging.WithStep(ctx, step.Name)
	e.logger.InfoContext(ctx, "running execution step")

	if len(step.Substeps) > 0 && len(step.Networks) > 0 {
		return schema.NewError(schema.ErrCodeConfig,
			"an execution step should have either substeps or networks but not both").WithStep(step.Name)
	}

	if step.ReportNetwork != "" {
		if step.ReportInterval <= 0 {
			return schema.NewError(schema.ErrCodeConfig,
				"a report_interval must be provided if report_network is set").WithStep(step.Name)
		}
		reportNet := e.nets.Get(step.ReportNetwork)
		if reportNet == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound,
				"report network %q not found", step.ReportNetwork).WithStep(step.Name)
		}
		rep := startReporter(ctx, reportNet, time.Duration(step.ReportInterval)*time.Second, e.logger)
		defer rep.stop()
	}

	netContinue, err := e.netContinuation(ctx, step)
	if err != nil {
		return err
	}
	shouldContinue := func(iter int) (bool, error) {
		ok, err := external(iter)
		if err != nil || !ok {
			return false, err
		}
		return netContinue(iter)
	}

	if len(step.Substeps) > 0 {
		return e.executeSubsteps(ctx, step, external, shouldContinue)
	}
	return e.executeNetworks(ctx, step, shouldContinue)
}

// executeSubsteps loops the substep branch: every pass runs each child once,
// sequentially in declared order, or with one worker per child claiming
// indices off a shared counter when concurrency is requested.
func (e *Executor) executeSubsteps(ctx context.Context, step *schema.StepDefinition, external Continuation, shouldContinue Continuation) error {
	for iter := 0; ; iter++ {
		ok, err := shouldContinue(iter)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		// Substeps are assumed to each take a reasonable amount of time,
		// so per-iteration logging at info is fine here.
		e.logger.InfoContext(ctx, "starting iteration", slog.Int("iteration", iter))

		var nextSubstep atomic.Int64
		var gotFailure atomic.Bool
		var firstErrMu sync.Mutex
		var firstErr error

		// A substep honors its ancestors' constraints and the shared
		// failure flag, never this level's criteria policy.
		substepContinue := func(i int) (bool, error) {
			if gotFailure.Load() {
				return false, nil
			}
			return external(i)
		}

		worker := func() {
			for {
				id := int(nextSubstep.Add(1)) - 1
				if gotFailure.Load() || id >= len(step.Substeps) {
					return
				}
				if err := e.ExecuteStep(ctx, &step.Substeps[id], substepContinue); err != nil {
					firstErrMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					firstErrMu.Unlock()
					gotFailure.Store(true)
				}
			}
		}

		if !step.ConcurrentSubsteps || len(step.Substeps) <= 1 {
			worker()
		} else {
			var wg sync.WaitGroup
			for range step.Substeps {
				wg.Add(1)
				go func() {
					defer wg.Done()
					worker()
				}()
			}
			wg.Wait()
		}

		if gotFailure.Load() {
			e.logger.ErrorContext(ctx, "substep failed",
				slog.Int("iteration", iter), slog.String("error", firstErr.Error()))
			return schema.NewErrorf(schema.ErrCodeExecution,
				"substep failed on iteration %d", iter).WithStep(step.Name).WithCause(firstErr)
		}
	}
}

// executeNetworks loops the network branch: all member networks are resolved
// before anything runs, then each pass runs them once in declared order.
func (e *Executor) executeNetworks(ctx context.Context, step *schema.StepDefinition, shouldContinue Continuation) error {
	resolved := make([]network.Network, 0, len(step.Networks))
	for _, name := range step.Networks {
		net := e.nets.Get(name)
		if net == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "network %q not found", name).WithStep(step.Name)
		}
		e.logger.DebugContext(ctx, "going to execute network", slog.String("network", name))
		resolved = append(resolved, net)
	}

	for iter := 0; ; iter++ {
		ok, err := shouldContinue(iter)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		e.logger.DebugContext(ctx, "executing network iteration", slog.Int("iteration", iter))
		for _, net := range resolved {
			if err := net.Run(logging.WithNetwork(ctx, net.Name())); err != nil {
				return schema.NewErrorf(schema.ErrCodeExecution,
					"error when running network: %s", err.Error()).
					WithNetwork(net.Name()).WithCause(err)
			}
		}
	}
}
