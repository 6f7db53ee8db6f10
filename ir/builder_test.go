package ir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellation-run/constellation/registry"
	"github.com/constellation-run/constellation/semtype"
)

func addModule() *registry.Module {
	return &registry.Module{
		Metadata: registry.Metadata{Name: "add"},
		Consumes: map[string]semtype.SemType{"a": semtype.Int(), "b": semtype.Int()},
		Produces: map[string]semtype.SemType{"out": semtype.Int()},
		Invoke: func(ctx context.Context, in map[string]semtype.Value) (semtype.Value, error) {
			return semtype.IntV(in["a"].Int + in["b"].Int), nil
		},
	}
}

func TestBuilderSimpleFoldPipeline(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("add", addModule()))
	b := NewBuilder(reg)

	two := b.Literal(semtype.IntV(2))
	three := b.Literal(semtype.IntV(3))
	r, err := b.ModuleCall("add", "add", map[string]NodeId{"a": two, "b": three}, ModuleCallOptions{})
	require.NoError(t, err)
	require.NoError(t, b.Bind("r", r))

	p, err := b.Finish([]string{"r"})
	require.NoError(t, err)
	assert.Equal(t, r, p.VariableBindings["r"])
	assert.Len(t, p.Nodes, 3)
}

func TestBuilderUnknownModule(t *testing.T) {
	reg := registry.New()
	b := NewBuilder(reg)
	_, err := b.ModuleCall("nope", "nope", nil, ModuleCallOptions{})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, UnknownModule, ce.Kind)
}

func TestBuilderParamTypeMismatch(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("add", addModule()))
	b := NewBuilder(reg)
	s := b.Literal(semtype.Str("x"))
	two := b.Literal(semtype.IntV(2))
	_, err := b.ModuleCall("add", "add", map[string]NodeId{"a": s, "b": two}, ModuleCallOptions{})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, TypeMismatch, ce.Kind)
}

func TestBuilderDuplicateOutputBinding(t *testing.T) {
	reg := registry.New()
	b := NewBuilder(reg)
	lit := b.Literal(semtype.IntV(1))
	require.NoError(t, b.Bind("r", lit))
	err := b.Bind("r", lit)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, DuplicateOutput, ce.Kind)
}

func TestBuilderGuardProducesOptional(t *testing.T) {
	reg := registry.New()
	b := NewBuilder(reg)
	val := b.Literal(semtype.IntV(42))
	cond := b.Literal(semtype.BoolV(true))
	g, err := b.Guard(val, cond)
	require.NoError(t, err)
	assert.Equal(t, semtype.KOptional, b.nodes[g].Type.Kind)
}

func TestBuilderCoalesceRequiresOptionalLeft(t *testing.T) {
	reg := registry.New()
	b := NewBuilder(reg)
	notOptional := b.Literal(semtype.IntV(1))
	other := b.Literal(semtype.IntV(2))
	_, err := b.Coalesce(notOptional, other)
	require.Error(t, err)
}

func TestBuilderHigherOrderMap(t *testing.T) {
	reg := registry.New()
	b := NewBuilder(reg)
	elems := []NodeId{b.Literal(semtype.IntV(1)), b.Literal(semtype.IntV(2))}
	list, err := b.ListLiteral(semtype.Int(), elems)
	require.NoError(t, err)

	lb := NewLambdaBuilder(reg)
	p := lb.Literal(semtype.IntV(0)) // placeholder param reference not needed for this check
	lambda := &TypedLambda{
		ParamNames: []string{"x"},
		ParamTypes: []semtype.SemType{semtype.Int()},
		Body:       lb.nodes,
		Output:     p,
		ReturnType: semtype.Int(),
	}
	mapped, err := b.HigherOrder(OpMap, list, lambda)
	require.NoError(t, err)
	assert.Equal(t, semtype.KList, b.nodes[mapped].Type.Kind)
}
