package network

import (
	"context"
	"log/slog"

	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

// Registry holds the instantiated networks of one plan run, keyed by name.
// Not internally synchronized: only the single goroutine driving a plan
// creates or deletes networks; concurrently-running steps only look up
// networks registered before they started.
type Registry struct {
	ws     *workspace.Workspace
	build  *Builders
	nets   map[string]Network
	logger *slog.Logger
}

// NewRegistry creates an empty network registry bound to a workspace and a
// builder set.
func NewRegistry(ws *workspace.Workspace, builders *Builders, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ws:     ws,
		build:  builders,
		nets:   make(map[string]Network),
		logger: logger,
	}
}

// Create builds, verifies, and registers a network from its definition. On a
// name collision the existing instance is torn down before the new one is
// constructed: the old network may hold exclusive resources (an open LevelDB,
// a bound socket) the replacement needs. A construction or verification
// failure leaves no entry behind.
func (r *Registry) Create(def schema.NetworkDefinition) (Network, error) {
	if def.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "network definition has no name")
	}

	if old, exists := r.nets[def.Name]; exists {
		r.logger.Warn("overwriting existing network of the same name", slog.String("network", def.Name))
		r.teardown(def.Name, old)
	}

	r.logger.Info("initializing network", slog.String("network", def.Name))

	builder, err := r.build.Get(def.Type)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "no builder for network %q", def.Name).
			WithNetwork(def.Name).WithCause(err)
	}

	net, err := builder(def, r.ws)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "error when creating the network: %s", err.Error()).
			WithNetwork(def.Name).WithCause(err)
	}

	if err := net.Verify(); err != nil {
		if c, ok := net.(Closer); ok {
			_ = c.Close()
		}
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "error when setting up network: %s", err.Error()).
			WithNetwork(def.Name).WithCause(err)
	}

	r.nets[def.Name] = net
	return net, nil
}

// Get returns the network under name, nil when absent. The caller decides
// whether a miss is fatal.
func (r *Registry) Get(name string) Network {
	return r.nets[name]
}

// Delete removes and tears down the network under name. Absent is a no-op.
func (r *Registry) Delete(name string) {
	if net, ok := r.nets[name]; ok {
		r.teardown(name, net)
	}
}

// Run looks up a network and runs it once. A miss is an error here, unlike
// Get: a caller asking to run a network by name expects it to exist.
func (r *Registry) Run(ctx context.Context, name string) error {
	net, ok := r.nets[name]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "network does not exist yet").WithNetwork(name)
	}
	if err := net.Run(ctx); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "error when running network: %s", err.Error()).
			WithNetwork(name).WithCause(err)
	}
	return nil
}

// Names returns the registered network names, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.nets))
	for name := range r.nets {
		names = append(names, name)
	}
	return names
}

func (r *Registry) teardown(name string, net Network) {
	delete(r.nets, name)
	if c, ok := net.(Closer); ok {
		if err := c.Close(); err != nil {
			r.logger.Warn("error closing network", slog.String("network", name), slog.String("error", err.Error()))
		}
	}
}
