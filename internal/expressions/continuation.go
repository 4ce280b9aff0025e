// Package expressions compiles user-supplied expressions into continuation
// predicates for the plan engine.
package expressions

import (
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mgrevis/gridplan/pkg/schema"
)

// continuationEnv builds the variable set available to continuation
// expressions: iter is the 0-based iteration index, elapsed_s the wall-clock
// seconds since the continuation was built.
func continuationEnv(iter int, elapsed float64) map[string]any {
	return map[string]any{
		"iter":      iter,
		"elapsed_s": elapsed,
	}
}

// NewContinuation compiles an expression such as
// "iter < 100 && elapsed_s < 30" into a continuation predicate. The
// expression must evaluate to a boolean; compilation errors are reported
// eagerly, evaluation errors stop the loop as fatal.
func NewContinuation(expression string) (func(iter int) (bool, error), error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty continuation expression")
	}

	prg, err := expr.Compile(expression,
		expr.Env(continuationEnv(0, 0)),
		expr.AsBool(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid continuation expression %q: %s", expression, err.Error()).WithCause(err)
	}

	start := time.Now()
	return func(iter int) (bool, error) {
		out, err := vm.Run(prg, continuationEnv(iter, time.Since(start).Seconds()))
		if err != nil {
			return false, schema.NewErrorf(schema.ErrCodeExecution,
				"continuation expression failed for %q: %s", expression, err.Error()).WithCause(err)
		}
		return out.(bool), nil
	}, nil
}
