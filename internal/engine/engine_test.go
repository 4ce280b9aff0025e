package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgrevis/gridplan/internal/network"
	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

// testHarness wires a workspace, a registry with a single scriptable builder,
// and an executor together for engine tests.
type testHarness struct {
	ws    *workspace.Workspace
	reg   *network.Registry
	exec  *Executor
	fakes map[string]*fakeNet
}

// fakeNet is an instrumented Network whose behavior is scripted per test.
type fakeNet struct {
	name    string
	outputs []string

	started   atomic.Int64
	completed atomic.Int64

	// onRun, if set, is invoked with the 1-based run count and its error
	// becomes the run result.
	onRun func(run int) error
}

func (f *fakeNet) Name() string              { return f.name }
func (f *fakeNet) ExternalOutputs() []string { return f.outputs }
func (f *fakeNet) Verify() error             { return nil }

func (f *fakeNet) Run(ctx context.Context) error {
	run := int(f.started.Add(1))
	var err error
	if f.onRun != nil {
		err = f.onRun(run)
	}
	f.completed.Add(1)
	return err
}

func (f *fakeNet) runs() int { return int(f.started.Load()) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		ws:    workspace.New(testLogger()),
		fakes: make(map[string]*fakeNet),
	}
	builders := network.NewBuilders()
	err := builders.Register("fake", func(def schema.NetworkDefinition, ws *workspace.Workspace) (network.Network, error) {
		f, ok := h.fakes[def.Name]
		if !ok {
			return nil, fmt.Errorf("no fake registered for %q", def.Name)
		}
		return f, nil
	})
	require.NoError(t, err)
	h.reg = network.NewRegistry(h.ws, builders, testLogger())
	h.exec = NewExecutor(h.ws, h.reg, testLogger())
	return h
}

// addNet registers an instrumented network under name.
func (h *testHarness) addNet(t *testing.T, f *fakeNet) *fakeNet {
	t.Helper()
	h.fakes[f.name] = f
	_, err := h.reg.Create(schema.NetworkDefinition{Name: f.name, Type: "fake"})
	require.NoError(t, err)
	return f
}

// addCriteriaNet registers a criteria network whose single boolean output
// follows decide(run) for each 1-based run count.
func (h *testHarness) addCriteriaNet(t *testing.T, name string, decide func(run int) bool) *fakeNet {
	t.Helper()
	out := name + "_output"
	blob := h.ws.CreateBlob(out)
	f := &fakeNet{
		name:    name,
		outputs: []string{out},
		onRun: func(run int) error {
			blob.Set(decide(run))
			return nil
		},
	}
	return h.addNet(t, f)
}

func intPtr(i int) *int { return &i }
