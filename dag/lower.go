package dag

import (
	"fmt"

	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/registry"
	"github.com/constellation-run/constellation/semtype"
)

// Lower implements the §4.E.1 table: every IR node becomes exactly one data
// node; every node that requires a computation (everything but Input and
// Literal) also gets exactly one module node producing that data node —
// a real registered module for ModuleCall, a synthesized built-in
// otherwise. The same ModuleCall referenced by two consumers still lowers
// to one module node feeding one data node with two consumer entries.
func Lower(p *ir.IRPipeline, reg *registry.Registry, name string) (*DagSpec, error) {
	order, err := p.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	spec := &DagSpec{
		Name:           name,
		Modules:        make(map[ModuleNodeId]ModuleNodeSpec),
		Data:           make(map[DataNodeId]DataNodeSpec),
		OutputBindings: make(map[string]DataNodeId),
	}
	dataOf := make(map[ir.NodeId]DataNodeId, len(p.Nodes))
	var nextModule ModuleNodeId
	var nextData DataNodeId

	allocData := func(t semtype.SemType) DataNodeId {
		nextData++
		spec.Data[nextData] = DataNodeSpec{Id: nextData, Type: t, ConsumerMap: make(map[ModuleNodeId]string)}
		return nextData
	}

	feed := func(producer ir.NodeId, consumer ModuleNodeId, param string) {
		d := dataOf[producer]
		ds := spec.Data[d]
		ds.ConsumerMap[consumer] = param
		spec.Data[d] = ds
		spec.InEdges = append(spec.InEdges, InEdge{Data: d, Module: consumer, Param: param})
	}

	emitModule := func(mid ModuleNodeId, mspec ModuleNodeSpec, outType semtype.SemType, params map[string]ir.NodeId) DataNodeId {
		spec.Modules[mid] = mspec
		out := allocData(outType)
		oe := mid
		od := out
		spec.OutEdges = append(spec.OutEdges, OutEdge{Module: oe, Data: od})
		ds := spec.Data[out]
		ds.Producer = &oe
		spec.Data[out] = ds
		for param, dep := range params {
			feed(dep, mid, param)
		}
		return out
	}

	for _, id := range order {
		n := p.Nodes[id]
		switch n.Tag {
		case ir.TagInput:
			nextData++
			spec.Data[nextData] = DataNodeSpec{
				Id: nextData, Type: n.Type, IsInput: true, InputName: n.InputName,
				ConsumerMap: make(map[ModuleNodeId]string),
			}
			dataOf[id] = nextData

		case ir.TagLiteral:
			nextData++
			spec.Data[nextData] = DataNodeSpec{
				Id: nextData, Type: n.Type, IsLiteral: true, Literal: n.LiteralValue,
				ConsumerMap: make(map[ModuleNodeId]string),
			}
			dataOf[id] = nextData

		case ir.TagModuleCall:
			m, err := reg.Get(n.ModuleName)
			if err != nil {
				return nil, fmt.Errorf("lowering %s: %w", n.ModuleName, err)
			}
			nextModule++
			mid := nextModule
			mspec := ModuleNodeSpec{
				Id: mid, Name: n.ModuleName, Consumes: m.Consumes, Produces: m.Produces, Options: n.Options,
			}
			if n.Options.Fallback != nil {
				if fd, ok := dataOf[*n.Options.Fallback]; ok {
					mspec.Fallback = &fd
				}
			}
			dataOf[id] = emitModule(mid, mspec, n.Type, n.Params)

		case ir.TagMerge:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__merge", &BuiltinSpec{Kind: BuiltinMerge}), n.Type,
				map[string]ir.NodeId{"left": n.Left, "right": n.Right})

		case ir.TagProject:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, fmt.Sprintf("__project%v", n.ProjectFields),
				&BuiltinSpec{Kind: BuiltinProject, ProjectFields: n.ProjectFields}), n.Type,
				map[string]ir.NodeId{"source": n.ProjectSource})

		case ir.TagFieldAccess:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__field["+n.FieldName+"]",
				&BuiltinSpec{Kind: BuiltinFieldAccess, FieldName: n.FieldName}), n.Type,
				map[string]ir.NodeId{"source": n.FieldSource})

		case ir.TagConditional:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__conditional", &BuiltinSpec{Kind: BuiltinConditional}), n.Type,
				map[string]ir.NodeId{"cond": n.CondCond, "then": n.CondThen, "else": n.CondElse})

		case ir.TagAnd:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__and", &BuiltinSpec{Kind: BuiltinAnd}), n.Type,
				map[string]ir.NodeId{"left": n.Left, "right": n.Right})

		case ir.TagOr:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__or", &BuiltinSpec{Kind: BuiltinOr}), n.Type,
				map[string]ir.NodeId{"left": n.Left, "right": n.Right})

		case ir.TagNot:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__not", &BuiltinSpec{Kind: BuiltinNot}), n.Type,
				map[string]ir.NodeId{"operand": n.Operand})

		case ir.TagGuard:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__guard", &BuiltinSpec{Kind: BuiltinGuard}), n.Type,
				map[string]ir.NodeId{"expr": n.Operand, "cond": n.GuardCond})

		case ir.TagCoalesce:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__coalesce", &BuiltinSpec{Kind: BuiltinCoalesce}), n.Type,
				map[string]ir.NodeId{"left": n.Left, "right": n.Right})

		case ir.TagBranch:
			params := map[string]ir.NodeId{"otherwise": n.BranchOtherwise}
			for i, arm := range n.BranchArms {
				params[fmt.Sprintf("cond%d", i)] = arm.Cond
				params[fmt.Sprintf("expr%d", i)] = arm.Expr
			}
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, fmt.Sprintf("__branch[%d]", len(n.BranchArms)),
				&BuiltinSpec{Kind: BuiltinBranch, BranchArity: len(n.BranchArms)}), n.Type, params)

		case ir.TagStringInterpolation:
			params := make(map[string]ir.NodeId, len(n.Exprs))
			for i, e := range n.Exprs {
				params[fmt.Sprintf("expr%d", i)] = e
			}
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__interp",
				&BuiltinSpec{Kind: BuiltinStringInterpolation, Parts: n.Parts}), n.Type, params)

		case ir.TagHigherOrder:
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, fmt.Sprintf("__higherorder[%d]", n.HOOp),
				&BuiltinSpec{Kind: BuiltinHigherOrder, HOOp: n.HOOp, Lambda: n.HOLambda}), n.Type,
				map[string]ir.NodeId{"source": n.HOSource})

		case ir.TagListLiteral:
			params := make(map[string]ir.NodeId, len(n.Elements))
			for i, e := range n.Elements {
				params[fmt.Sprintf("elem%d", i)] = e
			}
			nextModule++
			dataOf[id] = emitModule(nextModule, syntheticWithBuiltin(nextModule, "__list", &BuiltinSpec{Kind: BuiltinListLiteral}), n.Type, params)

		default:
			return nil, fmt.Errorf("lowering: unhandled IR tag %s", n.Tag)
		}
	}

	spec.DeclaredOutputs = p.DeclaredOutputs
	for _, outName := range p.DeclaredOutputs {
		spec.OutputBindings[outName] = dataOf[p.VariableBindings[outName]]
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func syntheticWithBuiltin(id ModuleNodeId, name string, b *BuiltinSpec) ModuleNodeSpec {
	return ModuleNodeSpec{Id: id, Name: name, Synthetic: true, Builtin: b}
}
