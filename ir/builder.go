package ir

import (
	"github.com/constellation-run/constellation/registry"
	"github.com/constellation-run/constellation/semtype"
)

// Builder turns a caller's walk of a typed expression tree into an
// IRPipeline. The surface-language parser and type checker are out of
// scope (§1); callers that own that stage drive Builder node-by-node as
// they descend their own tree, exactly the responsibilities listed in
// §4.C: fresh ids per construct, one Input per external port, module
// lookups resolved against the registry, and nested lambda graphs kept
// private to their TypedLambda.
type Builder struct {
	reg     *registry.Registry
	next    NodeId
	nodes   map[NodeId]IRNode
	inputs  []NodeId
	seenIn  map[string]NodeId
	bindings map[string]NodeId
}

// NewBuilder creates a Builder that resolves module calls against reg.
func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{
		reg:      reg,
		nodes:    make(map[NodeId]IRNode),
		seenIn:   make(map[string]NodeId),
		bindings: make(map[string]NodeId),
	}
}

func (b *Builder) alloc() NodeId {
	b.next++
	return b.next
}

func (b *Builder) put(n IRNode) NodeId {
	n.Id = b.alloc()
	b.nodes[n.Id] = n
	return n.Id
}

// Input returns the NodeId for external port name, creating it on first
// reference so only exactly one Input node exists per distinct port.
func (b *Builder) Input(name string, t semtype.SemType) NodeId {
	if id, ok := b.seenIn[name]; ok {
		return id
	}
	id := b.put(IRNode{Tag: TagInput, Type: t, InputName: name})
	b.inputs = append(b.inputs, id)
	b.seenIn[name] = id
	return id
}

// Literal adds a constant value node.
func (b *Builder) Literal(v semtype.Value) NodeId {
	return b.put(IRNode{Tag: TagLiteral, Type: v.Type, LiteralValue: v})
}

// ModuleCall resolves name against the registry, type-checks params against
// the module's Consumes schema, and adds a ModuleCall node whose output
// type is the module's Produces schema (widened to a record when the
// module has more than one output port, or the single field's type when it
// has exactly one).
func (b *Builder) ModuleCall(name, alias string, params map[string]NodeId, opts ModuleCallOptions) (NodeId, error) {
	m, err := b.reg.Get(name)
	if err != nil {
		return 0, &CompileError{Kind: UnknownModule, Detail: "unknown module: " + name, Cause: err}
	}
	if len(params) != len(m.Consumes) {
		return 0, &CompileError{Kind: ParamMismatch, Detail: "parameter count mismatch calling " + name}
	}
	for pname, want := range m.Consumes {
		id, ok := params[pname]
		if !ok {
			return 0, &CompileError{Kind: ParamMismatch, Detail: "missing parameter " + pname + " calling " + name}
		}
		got, ok := b.nodes[id]
		if !ok {
			return 0, &CompileError{Kind: UnboundVariable, Detail: "parameter references unknown node"}
		}
		if !semtype.Equivalent(got.Type, want) {
			return 0, &CompileError{Kind: TypeMismatch, Detail: "parameter " + pname + " type mismatch calling " + name}
		}
	}
	outType := outputType(m)
	if opts.OnError == OnErrorWrap && !wrapSentinelCompatible(outType) {
		return 0, &CompileError{Kind: TypeMismatch,
			Detail: "on_error=Wrap requires an Optional output or a union with an Error variant, calling " + name}
	}
	return b.put(IRNode{
		Tag:        TagModuleCall,
		Type:       outType,
		ModuleName: name,
		LocalAlias: alias,
		Params:     params,
		Options:    opts,
	}), nil
}

// wrapSentinelCompatible implements the §9 Open Question decision: Wrap is
// only accepted when the output type has an obvious type-compatible
// sentinel to substitute on failure — None for an Optional output, or the
// Error variant's payload for a union that declares one.
func wrapSentinelCompatible(t semtype.SemType) bool {
	if t.Kind == semtype.KOptional {
		return true
	}
	if t.Kind == semtype.KUnion {
		for _, v := range t.Variants {
			if v.Name == "Error" {
				return true
			}
		}
	}
	return false
}

func outputType(m *registry.Module) semtype.SemType {
	if len(m.Produces) == 1 {
		for _, t := range m.Produces {
			return t
		}
	}
	fields := make([]semtype.Field, 0, len(m.Produces))
	for name, t := range m.Produces {
		fields = append(fields, semtype.Field{Name: name, Type: t})
	}
	return semtype.Record(fields...)
}

// Merge widens left and right's record types (conflict on shared field is a
// TypeMismatch).
func (b *Builder) Merge(left, right NodeId) (NodeId, error) {
	lt, rt := b.nodes[left].Type, b.nodes[right].Type
	merged, err := semtype.WidenRecords(lt, rt)
	if err != nil {
		return 0, &CompileError{Kind: TypeMismatch, Detail: err.Error(), Cause: err}
	}
	return b.put(IRNode{Tag: TagMerge, Type: merged, Left: left, Right: right}), nil
}

// Project restricts source's record type to fields, in the given order.
func (b *Builder) Project(source NodeId, fields []string) (NodeId, error) {
	st := b.nodes[source].Type
	pt, err := semtype.Project(st, fields)
	if err != nil {
		return 0, &CompileError{Kind: TypeMismatch, Detail: err.Error(), Cause: err}
	}
	return b.put(IRNode{Tag: TagProject, Type: pt, ProjectSource: source, ProjectFields: fields}), nil
}

// FieldAccess reads a single field off a record node.
func (b *Builder) FieldAccess(source NodeId, field string) (NodeId, error) {
	st := b.nodes[source].Type
	ft, err := semtype.FieldType(st, field)
	if err != nil {
		return 0, &CompileError{Kind: TypeMismatch, Detail: err.Error(), Cause: err}
	}
	return b.put(IRNode{Tag: TagFieldAccess, Type: ft, FieldSource: source, FieldName: field}), nil
}

// Conditional requires a boolean cond and matching then/else result types.
func (b *Builder) Conditional(cond, then, els NodeId) (NodeId, error) {
	if b.nodes[cond].Type.Kind != semtype.KBoolean {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "conditional requires a boolean condition"}
	}
	tt, et := b.nodes[then].Type, b.nodes[els].Type
	if !semtype.Equivalent(tt, et) {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "conditional arms must share a result type"}
	}
	return b.put(IRNode{Tag: TagConditional, Type: tt, CondCond: cond, CondThen: then, CondElse: els}), nil
}

func (b *Builder) boolBinary(tag Tag, left, right NodeId) (NodeId, error) {
	if b.nodes[left].Type.Kind != semtype.KBoolean || b.nodes[right].Type.Kind != semtype.KBoolean {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "boolean operator requires boolean operands"}
	}
	return b.put(IRNode{Tag: tag, Type: semtype.Boolean(), Left: left, Right: right}), nil
}

// And adds a short-circuit boolean And node.
func (b *Builder) And(left, right NodeId) (NodeId, error) { return b.boolBinary(TagAnd, left, right) }

// Or adds a short-circuit boolean Or node.
func (b *Builder) Or(left, right NodeId) (NodeId, error) { return b.boolBinary(TagOr, left, right) }

// Not negates a boolean operand.
func (b *Builder) Not(operand NodeId) (NodeId, error) {
	if b.nodes[operand].Type.Kind != semtype.KBoolean {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "not requires a boolean operand"}
	}
	return b.put(IRNode{Tag: TagNot, Type: semtype.Boolean(), Operand: operand}), nil
}

// Guard produces Optional(expr's type): Some(expr) when cond is true, None
// otherwise.
func (b *Builder) Guard(expr, cond NodeId) (NodeId, error) {
	if b.nodes[cond].Type.Kind != semtype.KBoolean {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "guard condition must be boolean"}
	}
	inner := b.nodes[expr].Type
	return b.put(IRNode{Tag: TagGuard, Type: semtype.Optional(inner), Operand: expr, GuardCond: cond}), nil
}

// Coalesce requires left: Optional(inner) and right: inner, short-circuiting
// to left's payload when present.
func (b *Builder) Coalesce(left, right NodeId) (NodeId, error) {
	lt := b.nodes[left].Type
	if lt.Kind != semtype.KOptional {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "coalesce left must be Optional"}
	}
	rt := b.nodes[right].Type
	if !semtype.Equivalent(*lt.Inner, rt) {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "coalesce right type must match the optional's inner type"}
	}
	return b.put(IRNode{Tag: TagCoalesce, Type: rt, Left: left, Right: right}), nil
}

// Branch requires every arm's expr and otherwise to share a result type,
// and every arm's cond to be boolean.
func (b *Builder) Branch(arms []CondExprPair, otherwise NodeId) (NodeId, error) {
	if len(arms) == 0 {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "branch requires at least one arm"}
	}
	result := b.nodes[otherwise].Type
	for _, arm := range arms {
		if b.nodes[arm.Cond].Type.Kind != semtype.KBoolean {
			return 0, &CompileError{Kind: TypeMismatch, Detail: "branch arm condition must be boolean"}
		}
		if !semtype.Equivalent(b.nodes[arm.Expr].Type, result) {
			return 0, &CompileError{Kind: TypeMismatch, Detail: "branch arms must share a result type"}
		}
	}
	return b.put(IRNode{Tag: TagBranch, Type: result, BranchArms: arms, BranchOtherwise: otherwise}), nil
}

// StringInterpolation requires len(parts) == len(exprs)+1.
func (b *Builder) StringInterpolation(parts []string, exprs []NodeId) (NodeId, error) {
	if len(parts) != len(exprs)+1 {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "string interpolation requires parts.len == exprs.len + 1"}
	}
	return b.put(IRNode{Tag: TagStringInterpolation, Type: semtype.String(), Parts: parts, Exprs: exprs}), nil
}

// HigherOrder adds a collection operation over source, whose element type
// must match lambda's single parameter type.
func (b *Builder) HigherOrder(op HigherOrderOp, source NodeId, lambda *TypedLambda) (NodeId, error) {
	st := b.nodes[source].Type
	if st.Kind != semtype.KList {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "higher-order source must be a list"}
	}
	if len(lambda.ParamTypes) != 1 || !semtype.Equivalent(lambda.ParamTypes[0], *st.Elem) {
		return 0, &CompileError{Kind: TypeMismatch, Detail: "lambda parameter type must match list element type"}
	}
	var resultType semtype.SemType
	switch op {
	case OpFilter, OpSortBy:
		resultType = st
	case OpMap:
		resultType = semtype.List(lambda.ReturnType)
	case OpAll, OpAny:
		resultType = semtype.Boolean()
	}
	return b.put(IRNode{Tag: TagHigherOrder, Type: resultType, HOOp: op, HOSource: source, HOLambda: lambda}), nil
}

// ListLiteral requires every element to share elemType.
func (b *Builder) ListLiteral(elemType semtype.SemType, elements []NodeId) (NodeId, error) {
	for _, id := range elements {
		if !semtype.Equivalent(b.nodes[id].Type, elemType) {
			return 0, &CompileError{Kind: TypeMismatch, Detail: "list literal element type mismatch"}
		}
	}
	return b.put(IRNode{Tag: TagListLiteral, Type: semtype.List(elemType), Elements: elements}), nil
}

// Bind records that declared output/variable name resolves to id. Rebinding
// an already-bound name is a DuplicateOutput error.
func (b *Builder) Bind(name string, id NodeId) error {
	if _, exists := b.bindings[name]; exists {
		return &CompileError{Kind: DuplicateOutput, Detail: "duplicate binding: " + name}
	}
	b.bindings[name] = id
	return nil
}

// Nodes exposes the builder's private node arena, chiefly so a
// NewLambdaBuilder's output can be wired into a TypedLambda.Body field by a
// caller outside this package.
func (b *Builder) Nodes() map[NodeId]IRNode { return b.nodes }

// Finish validates that every declaredOutput has a binding and returns the
// completed, henceforth-immutable pipeline.
func (b *Builder) Finish(declaredOutputs []string) (*IRPipeline, error) {
	for _, name := range declaredOutputs {
		if _, ok := b.bindings[name]; !ok {
			return nil, &CompileError{Kind: UnboundVariable, Detail: "declared output never bound: " + name}
		}
	}
	p := &IRPipeline{
		Nodes:            b.nodes,
		Inputs:           b.inputs,
		DeclaredOutputs:  declaredOutputs,
		VariableBindings: b.bindings,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewLambdaBuilder creates a Builder scoped to a lambda body: it shares the
// parent's module registry for resolving calls inside the lambda but owns
// its own private node arena, so no NodeId leaks between the two graphs.
func NewLambdaBuilder(reg *registry.Registry) *Builder {
	return NewBuilder(reg)
}
