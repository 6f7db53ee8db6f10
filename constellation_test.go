package constellation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/registry"
	"github.com/constellation-run/constellation/semtype"
)

// addFrontend is a minimal Frontend stand-in for the out-of-scope surface
// parser: it always builds `r = add(2, 3); out r`, ignoring source text,
// the way a real front-end would walk its typed AST instead.
type addFrontend struct{}

func (addFrontend) Build(b *ir.Builder, _ string) ([]string, error) {
	two := b.Literal(semtype.IntV(2))
	three := b.Literal(semtype.IntV(3))
	r, err := b.ModuleCall("add", "add", map[string]ir.NodeId{"a": two, "b": three}, ir.ModuleCallOptions{})
	if err != nil {
		return nil, err
	}
	if err := b.Bind("r", r); err != nil {
		return nil, err
	}
	return []string{"r"}, nil
}

func addModule() *registry.Module {
	return &registry.Module{
		Metadata: registry.Metadata{Name: "add"},
		Consumes: map[string]semtype.SemType{"a": semtype.Int(), "b": semtype.Int()},
		Produces: map[string]semtype.SemType{"out": semtype.Int()},
		Invoke: func(_ context.Context, in map[string]semtype.Value) (semtype.Value, error) {
			return semtype.IntV(in["a"].Int + in["b"].Int), nil
		},
	}
}

// TestCompileRunSimpleFold grounds §8 scenario 1: constant folding reduces
// `r = add(2, 3)` to a single Literal and DCE drops the add module node
// entirely, yet Run through the full Compile/Run boundary still yields
// {r: 5}.
func TestCompileRunSimpleFold(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("add", addModule()))

	eng, err := New(reg, addFrontend{}, nil)
	require.NoError(t, err)

	out, errs := eng.Compile("simple-fold", "r = add(2, 3); out r")
	require.Empty(t, errs)
	require.NotNil(t, out)

	// Constant folding + DCE should have eliminated the add module node.
	require.Len(t, out.Dag.Modules, 0)

	result, state, err := eng.Run(context.Background(), out, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), result["r"].Int)
	require.NotNil(t, state)
}

// TestCompileCachesByNameAndHash grounds §4.F and §6: recompiling the same
// (name, source) pair hits the cache, and cache introspection surfaces
// that hit.
func TestCompileCachesByNameAndHash(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("add", addModule()))
	eng, err := New(reg, addFrontend{}, nil)
	require.NoError(t, err)

	_, errs := eng.Compile("cached", "r = add(2, 3); out r")
	require.Empty(t, errs)
	before := eng.CacheStats()

	out2, errs := eng.Compile("cached", "r = add(2, 3); out r")
	require.Empty(t, errs)
	require.NotNil(t, out2)

	after := eng.CacheStats()
	require.Equal(t, before.Hits+1, after.Hits)

	eng.InvalidateCache("cached")
	require.Equal(t, 0, eng.CacheStats().Size)
}

// TestRunRejectsUnknownInput grounds §6's "extra unmapped inputs are
// rejected" requirement.
func TestRunRejectsUnknownInput(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("add", addModule()))
	eng, err := New(reg, addFrontend{}, nil)
	require.NoError(t, err)

	out, errs := eng.Compile("no-inputs", "r = add(2, 3); out r")
	require.Empty(t, errs)

	_, _, err = eng.Run(context.Background(), out, map[string]semtype.Value{"bogus": semtype.IntV(1)})
	require.Error(t, err)
}

// TestRegisterModuleBoundary grounds the §6 "Register module" boundary.
func TestRegisterModuleBoundary(t *testing.T) {
	reg := registry.New()
	eng, err := New(reg, addFrontend{}, nil)
	require.NoError(t, err)

	err = eng.RegisterModule("add", registry.Metadata{Name: "add", Version: "1.0.0"},
		map[string]semtype.SemType{"a": semtype.Int(), "b": semtype.Int()},
		map[string]semtype.SemType{"out": semtype.Int()},
		func(_ context.Context, in map[string]semtype.Value) (semtype.Value, error) {
			return semtype.IntV(in["a"].Int + in["b"].Int), nil
		})
	require.NoError(t, err)

	_, errs := eng.Compile("registered", "r = add(2, 3); out r")
	require.Empty(t, errs)
}
