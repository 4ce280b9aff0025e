// Package network defines the seam between the plan engine and the dataflow
// graph executor. The engine never looks inside a network: it builds them
// from definitions, verifies them once, runs them, and reads their declared
// external outputs from the workspace.
package network

import (
	"context"
	"sync"

	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

// Network is an instantiated, runnable dataflow graph.
type Network interface {
	// Name returns the network's registered name.
	Name() string

	// Run executes the whole graph once. Blocking; the engine treats it as
	// an opaque call.
	Run(ctx context.Context) error

	// Verify checks the graph is well-formed. Called exactly once, right
	// after construction.
	Verify() error

	// ExternalOutputs lists the blob names the network publishes to the
	// workspace after Run completes.
	ExternalOutputs() []string
}

// Closer is optionally implemented by networks holding exclusive external
// resources (open files, device handles). The registry closes a displaced
// instance before constructing its replacement.
type Closer interface {
	Close() error
}

// Builder constructs a network of one type from its definition. The builder
// is expected to create any blobs the network needs in ws.
type Builder func(def schema.NetworkDefinition, ws *workspace.Workspace) (Network, error)

// Builders is a thread-safe registry of network builders keyed by
// definition type.
type Builders struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewBuilders creates an empty builder registry.
func NewBuilders() *Builders {
	return &Builders{builders: make(map[string]Builder)}
}

// Register adds a builder under the given type name. Duplicate registration
// is an error.
func (b *Builders) Register(netType string, builder Builder) error {
	if netType == "" {
		return schema.NewError(schema.ErrCodeValidation, "network type is empty")
	}
	if builder == nil {
		return schema.NewError(schema.ErrCodeValidation, "builder is nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.builders[netType]; exists {
		return schema.NewErrorf(schema.ErrCodeValidation, "network type %q already registered", netType)
	}
	b.builders[netType] = builder
	return nil
}

// Get retrieves the builder for a type name.
func (b *Builders) Get(netType string) (Builder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	builder, ok := b.builders[netType]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "network type %q not registered", netType)
	}
	return builder, nil
}
