package engine

import (
	"context"
	"log/slog"

	"github.com/mgrevis/gridplan/pkg/schema"
)

// Continuation decides, given a 0-based iteration index, whether a step's
// loop keeps going. Predicates compose by logical AND across nesting levels:
// a substep must satisfy both its own policy and every ancestor's.
type Continuation func(iter int) (bool, error)

// Always is the identity continuation: loop as long as the step's own policy
// allows.
func Always(int) (bool, error) { return true, nil }

// netContinuation builds the step's own continuation predicate.
//
// With no criteria network the predicate is a plain fixed-count test,
// defaulting to a single iteration. With a criteria network the predicate
// re-runs that network on every evaluation and reads its single boolean
// output, so the decision always reflects current workspace state. The
// composed predicate is evaluated exactly once per loop pass, so the
// criteria network runs exactly once per iteration.
func (e *Executor) netContinuation(ctx context.Context, step *schema.StepDefinition) (Continuation, error) {
	if step.CriteriaNetwork != "" && step.HasNumIter() {
		return nil, schema.NewError(schema.ErrCodeConfig,
			"must not specify num_iter if criteria_network is set").WithStep(step.Name)
	}

	if step.CriteriaNetwork == "" {
		iterations := step.Iterations()
		e.logger.DebugContext(ctx, "executing step for fixed iterations", slog.Int("iterations", iterations))
		return func(i int) (bool, error) {
			return i < iterations, nil
		}, nil
	}

	criteria := e.nets.Get(step.CriteriaNetwork)
	if criteria == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"criteria network %q not found", step.CriteriaNetwork).WithStep(step.Name)
	}

	outputs := criteria.ExternalOutputs()
	if len(outputs) != 1 {
		return nil, schema.NewErrorf(schema.ErrCodeConfig,
			"criteria network %q must declare exactly one external output, has %d",
			step.CriteriaNetwork, len(outputs)).WithStep(step.Name)
	}
	criteriaOutput := outputs[0]
	e.logger.DebugContext(ctx, "executing step controlled by criteria output",
		slog.String("criteria_output", criteriaOutput))

	return func(int) (bool, error) {
		if err := criteria.Run(ctx); err != nil {
			return false, schema.NewErrorf(schema.ErrCodeExecution,
				"criteria network failed: %s", err.Error()).
				WithNetwork(step.CriteriaNetwork).WithCause(err)
		}
		blob := e.ws.GetBlob(criteriaOutput)
		if blob == nil {
			return false, schema.NewErrorf(schema.ErrCodeConfig,
				"criteria output %q not in the workspace", criteriaOutput).
				WithNetwork(step.CriteriaNetwork)
		}
		v, ok := blob.Bool()
		if !ok {
			return false, schema.NewErrorf(schema.ErrCodeConfig,
				"criteria output %q is not a single boolean", criteriaOutput).
				WithNetwork(step.CriteriaNetwork)
		}
		return v, nil
	}, nil
}
