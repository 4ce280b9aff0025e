package network

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeNet is a scriptable Network for registry tests.
type fakeNet struct {
	name      string
	outputs   []string
	runErr    error
	verifyErr error
	runs      int
	closed    bool
	onClose   func()
}

func (f *fakeNet) Name() string              { return f.name }
func (f *fakeNet) ExternalOutputs() []string { return f.outputs }
func (f *fakeNet) Verify() error             { return f.verifyErr }

func (f *fakeNet) Run(ctx context.Context) error {
	f.runs++
	return f.runErr
}

func (f *fakeNet) Close() error {
	f.closed = true
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *Builders) {
	t.Helper()
	ws := workspace.New(testLogger())
	builders := NewBuilders()
	return NewRegistry(ws, builders, testLogger()), builders
}

func registerFake(t *testing.T, builders *Builders, netType string, fn func(def schema.NetworkDefinition) *fakeNet) {
	t.Helper()
	err := builders.Register(netType, func(def schema.NetworkDefinition, ws *workspace.Workspace) (Network, error) {
		return fn(def), nil
	})
	require.NoError(t, err)
}

func TestCreate_Success(t *testing.T) {
	reg, builders := newTestRegistry(t)
	registerFake(t, builders, "fake", func(def schema.NetworkDefinition) *fakeNet {
		return &fakeNet{name: def.Name}
	})

	net, err := reg.Create(schema.NetworkDefinition{Name: "init_net", Type: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "init_net", net.Name())
	assert.Same(t, net, reg.Get("init_net"))
}

func TestCreate_EmptyName(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Create(schema.NetworkDefinition{Type: "fake"})
	require.Error(t, err)

	var perr *schema.PlanError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}

func TestCreate_UnknownType(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Create(schema.NetworkDefinition{Name: "n", Type: "missing"})
	require.Error(t, err)
	assert.Nil(t, reg.Get("n"))
}

func TestCreate_BuilderFailure_NoEntryLeft(t *testing.T) {
	reg, builders := newTestRegistry(t)
	err := builders.Register("broken", func(def schema.NetworkDefinition, ws *workspace.Workspace) (Network, error) {
		return nil, errors.New("construction exploded")
	})
	require.NoError(t, err)

	_, err = reg.Create(schema.NetworkDefinition{Name: "n", Type: "broken"})
	require.Error(t, err)
	assert.Nil(t, reg.Get("n"))
}

func TestCreate_VerifyFailure_DiscardsInstance(t *testing.T) {
	reg, builders := newTestRegistry(t)
	var built *fakeNet
	registerFake(t, builders, "fake", func(def schema.NetworkDefinition) *fakeNet {
		built = &fakeNet{name: def.Name, verifyErr: errors.New("bad graph")}
		return built
	})

	_, err := reg.Create(schema.NetworkDefinition{Name: "n", Type: "fake"})
	require.Error(t, err)
	assert.Nil(t, reg.Get("n"))
	assert.True(t, built.closed, "partially-created instance must be torn down")
}

func TestCreate_Replace_ClosesOldBeforeBuildingNew(t *testing.T) {
	reg, builders := newTestRegistry(t)

	var events []string
	var first *fakeNet
	registerFake(t, builders, "fake", func(def schema.NetworkDefinition) *fakeNet {
		events = append(events, "build")
		n := &fakeNet{name: def.Name}
		n.onClose = func() { events = append(events, "close") }
		return n
	})

	n1, err := reg.Create(schema.NetworkDefinition{Name: "db_net", Type: "fake"})
	require.NoError(t, err)
	first = n1.(*fakeNet)

	n2, err := reg.Create(schema.NetworkDefinition{Name: "db_net", Type: "fake"})
	require.NoError(t, err)

	// Old instance released before the replacement was constructed, so a
	// held exclusive resource is free when the new builder runs.
	assert.Equal(t, []string{"build", "close", "build"}, events)
	assert.True(t, first.closed)
	assert.Same(t, n2, reg.Get("db_net"))
}

func TestDelete(t *testing.T) {
	reg, builders := newTestRegistry(t)
	var built *fakeNet
	registerFake(t, builders, "fake", func(def schema.NetworkDefinition) *fakeNet {
		built = &fakeNet{name: def.Name}
		return built
	})

	_, err := reg.Create(schema.NetworkDefinition{Name: "n", Type: "fake"})
	require.NoError(t, err)

	reg.Delete("n")
	assert.Nil(t, reg.Get("n"))
	assert.True(t, built.closed)

	// Absent delete is a no-op.
	reg.Delete("n")
}

func TestRun(t *testing.T) {
	reg, builders := newTestRegistry(t)
	var built *fakeNet
	registerFake(t, builders, "fake", func(def schema.NetworkDefinition) *fakeNet {
		built = &fakeNet{name: def.Name}
		return built
	})

	_, err := reg.Create(schema.NetworkDefinition{Name: "n", Type: "fake"})
	require.NoError(t, err)

	require.NoError(t, reg.Run(context.Background(), "n"))
	assert.Equal(t, 1, built.runs)

	err = reg.Run(context.Background(), "ghost")
	var perr *schema.PlanError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeNotFound, perr.Code)
}

func TestRunOnce(t *testing.T) {
	reg, builders := newTestRegistry(t)
	var built *fakeNet
	registerFake(t, builders, "fake", func(def schema.NetworkDefinition) *fakeNet {
		built = &fakeNet{name: def.Name}
		return built
	})

	require.NoError(t, reg.RunOnce(context.Background(), schema.NetworkDefinition{Name: "once", Type: "fake"}))
	assert.Equal(t, 1, built.runs)
	assert.True(t, built.closed)
	assert.Nil(t, reg.Get("once"), "transient network must not be registered")
}

func TestBuilders_DuplicateRegistration(t *testing.T) {
	builders := NewBuilders()
	nop := func(def schema.NetworkDefinition, ws *workspace.Workspace) (Network, error) {
		return &fakeNet{name: def.Name}, nil
	}
	require.NoError(t, builders.Register("fake", nop))
	assert.Error(t, builders.Register("fake", nop))
}
