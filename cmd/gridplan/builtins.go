package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mgrevis/gridplan/internal/network"
	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

// Builtin demo network types, enough to exercise a plan end to end without a
// full dataflow executor behind the Network seam:
//
//	counter    increments an integer blob every run
//	threshold  criteria network: outputs counter < limit as a single bool
//	print      report network: logs the current values of selected blobs
func registerBuiltins(builders *network.Builders, logger *slog.Logger) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(builders.Register("counter", newCounterNet))
	must(builders.Register("threshold", newThresholdNet))
	must(builders.Register("print", func(def schema.NetworkDefinition, ws *workspace.Workspace) (network.Network, error) {
		return newPrintNet(def, ws, logger)
	}))
}

type counterNet struct {
	name string
	blob *workspace.Blob
	out  []string
}

func newCounterNet(def schema.NetworkDefinition, ws *workspace.Workspace) (network.Network, error) {
	var params struct {
		Blob string `json:"blob"`
	}
	if err := json.Unmarshal(def.Params, &params); err != nil {
		return nil, fmt.Errorf("counter params: %w", err)
	}
	if params.Blob == "" {
		return nil, fmt.Errorf("counter network %q: blob is required", def.Name)
	}
	blob := ws.CreateBlob(params.Blob)
	if blob.IsEmpty() {
		blob.Set(0)
	}
	return &counterNet{name: def.Name, blob: blob, out: []string{params.Blob}}, nil
}

func (n *counterNet) Name() string              { return n.name }
func (n *counterNet) ExternalOutputs() []string { return n.out }
func (n *counterNet) Verify() error             { return nil }

func (n *counterNet) Run(ctx context.Context) error {
	count, _ := n.blob.Value().(int)
	n.blob.Set(count + 1)
	return nil
}

type thresholdNet struct {
	name    string
	counter *workspace.Blob
	output  *workspace.Blob
	limit   int
	out     []string
}

func newThresholdNet(def schema.NetworkDefinition, ws *workspace.Workspace) (network.Network, error) {
	var params struct {
		Counter string `json:"counter"`
		Limit   int    `json:"limit"`
		Output  string `json:"output"`
	}
	if err := json.Unmarshal(def.Params, &params); err != nil {
		return nil, fmt.Errorf("threshold params: %w", err)
	}
	if params.Counter == "" || params.Output == "" {
		return nil, fmt.Errorf("threshold network %q: counter and output are required", def.Name)
	}
	return &thresholdNet{
		name:    def.Name,
		counter: ws.CreateBlob(params.Counter),
		output:  ws.CreateBlob(params.Output),
		limit:   params.Limit,
		out:     []string{params.Output},
	}, nil
}

func (n *thresholdNet) Name() string              { return n.name }
func (n *thresholdNet) ExternalOutputs() []string { return n.out }

func (n *thresholdNet) Verify() error {
	if n.limit < 0 {
		return fmt.Errorf("threshold network %q: limit must be non-negative", n.name)
	}
	return nil
}

func (n *thresholdNet) Run(ctx context.Context) error {
	count, _ := n.counter.Value().(int)
	n.output.Set(count < n.limit)
	return nil
}

type printNet struct {
	name   string
	ws     *workspace.Workspace
	blobs  []string
	logger *slog.Logger
}

func newPrintNet(def schema.NetworkDefinition, ws *workspace.Workspace, logger *slog.Logger) (network.Network, error) {
	var params struct {
		Blobs []string `json:"blobs"`
	}
	if len(def.Params) > 0 {
		if err := json.Unmarshal(def.Params, &params); err != nil {
			return nil, fmt.Errorf("print params: %w", err)
		}
	}
	return &printNet{name: def.Name, ws: ws, blobs: params.Blobs, logger: logger}, nil
}

func (n *printNet) Name() string              { return n.name }
func (n *printNet) ExternalOutputs() []string { return nil }
func (n *printNet) Verify() error             { return nil }

func (n *printNet) Run(ctx context.Context) error {
	names := n.blobs
	if len(names) == 0 {
		names = n.ws.Blobs()
	}
	for _, name := range names {
		blob := n.ws.GetBlob(name)
		if blob == nil {
			continue
		}
		n.logger.InfoContext(ctx, "blob value",
			slog.String("blob", name), slog.Any("value", blob.Value()))
	}
	return nil
}
