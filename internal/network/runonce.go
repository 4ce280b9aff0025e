package network

import (
	"context"

	"github.com/mgrevis/gridplan/pkg/schema"
)

// RunOnce builds a transient network from def, verifies it, runs it a single
// time, and discards it without ever registering it. Useful for one-shot
// initialization networks that have no business staying resident.
func (r *Registry) RunOnce(ctx context.Context, def schema.NetworkDefinition) error {
	builder, err := r.build.Get(def.Type)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "no builder for network %q", def.Name).
			WithNetwork(def.Name).WithCause(err)
	}

	net, err := builder(def, r.ws)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "error when creating the network: %s", err.Error()).
			WithNetwork(def.Name).WithCause(err)
	}
	defer func() {
		if c, ok := net.(Closer); ok {
			_ = c.Close()
		}
	}()

	if err := net.Verify(); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "error when setting up network: %s", err.Error()).
			WithNetwork(def.Name).WithCause(err)
	}
	if err := net.Run(ctx); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "error when running network: %s", err.Error()).
			WithNetwork(def.Name).WithCause(err)
	}
	return nil
}
