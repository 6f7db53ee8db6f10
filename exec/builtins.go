package exec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/registry"
	"github.com/constellation-run/constellation/semtype"
)

// runBuiltin evaluates a synthesized structural module. These are pure,
// in-process functions of their already-resolved inputs: no retry, timeout,
// or cache policy ever applies to them at the DAG level (they have none —
// only real ModuleCall nodes carry Options), but HigherOrder bodies may
// themselves invoke registered modules, so a registry and context are
// threaded through.
func runBuiltin(ctx context.Context, reg *registry.Registry, b *dag.BuiltinSpec, inputs map[string]semtype.Value, outType semtype.SemType) (semtype.Value, error) {
	switch b.Kind {
	case dag.BuiltinMerge:
		return mergeValues(inputs["left"], inputs["right"], outType), nil

	case dag.BuiltinProject:
		return projectValue(inputs["source"], b.ProjectFields, outType), nil

	case dag.BuiltinFieldAccess:
		left := inputs["source"]
		v, _ := left.FieldByName(left.Type, b.FieldName)
		return v, nil

	case dag.BuiltinConditional:
		if inputs["cond"].Bool {
			return inputs["then"], nil
		}
		return inputs["else"], nil

	case dag.BuiltinAnd:
		return semtype.BoolV(inputs["left"].Bool && inputs["right"].Bool), nil

	case dag.BuiltinOr:
		return semtype.BoolV(inputs["left"].Bool || inputs["right"].Bool), nil

	case dag.BuiltinNot:
		return semtype.BoolV(!inputs["operand"].Bool), nil

	case dag.BuiltinGuard:
		if inputs["cond"].Bool {
			v := inputs["expr"]
			return semtype.Some(v.Type, v), nil
		}
		return semtype.None(*outType.Inner), nil

	case dag.BuiltinCoalesce:
		left := inputs["left"]
		if !left.IsNone() {
			return *left.Optional, nil
		}
		return inputs["right"], nil

	case dag.BuiltinBranch:
		for i := 0; i < b.BranchArity; i++ {
			if inputs[fmt.Sprintf("cond%d", i)].Bool {
				return inputs[fmt.Sprintf("expr%d", i)], nil
			}
		}
		return inputs["otherwise"], nil

	case dag.BuiltinStringInterpolation:
		var sb strings.Builder
		for i, part := range b.Parts {
			sb.WriteString(part)
			if v, ok := inputs[fmt.Sprintf("expr%d", i)]; ok {
				sb.WriteString(formatPrimitiveValue(v))
			}
		}
		return semtype.Str(sb.String()), nil

	case dag.BuiltinListLiteral:
		elems := make([]semtype.Value, 0, len(inputs))
		for i := 0; ; i++ {
			v, ok := inputs[fmt.Sprintf("elem%d", i)]
			if !ok {
				break
			}
			elems = append(elems, v)
		}
		return semtype.Value{Type: outType, List: elems}, nil

	case dag.BuiltinHigherOrder:
		return runHigherOrder(ctx, reg, b, inputs["source"], outType)

	default:
		return semtype.Value{}, &EngineError{Detail: "unknown builtin kind"}
	}
}

func mergeValues(left, right semtype.Value, outType semtype.SemType) semtype.Value {
	out := make([]semtype.Value, 0, len(outType.Fields))
	for _, f := range outType.Fields {
		if v, ok := left.FieldByName(left.Type, f.Name); ok {
			out = append(out, v)
			continue
		}
		if v, ok := right.FieldByName(right.Type, f.Name); ok {
			out = append(out, v)
			continue
		}
		out = append(out, semtype.Value{Type: f.Type})
	}
	return semtype.Value{Type: outType, Record: out}
}

func projectValue(src semtype.Value, fields []string, outType semtype.SemType) semtype.Value {
	out := make([]semtype.Value, 0, len(fields))
	for _, name := range fields {
		v, _ := src.FieldByName(src.Type, name)
		out = append(out, v)
	}
	return semtype.Value{Type: outType, Record: out}
}

func formatPrimitiveValue(v semtype.Value) string {
	switch v.Type.Kind {
	case semtype.KString:
		return v.Str
	case semtype.KInt:
		return strconv.FormatInt(v.Int, 10)
	case semtype.KFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case semtype.KBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// runHigherOrder evaluates a TypedLambda over every element of source,
// using a small direct interpreter over the lambda's private node map: it
// never descends into nested HigherOrder lambdas beyond one level deep in
// this interpreter (the optimizer's separate lambda-descent question, see
// DESIGN.md, is about optimization, not this evaluator).
func runHigherOrder(ctx context.Context, reg *registry.Registry, b *dag.BuiltinSpec, source semtype.Value, outType semtype.SemType) (semtype.Value, error) {
	lambda := b.Lambda
	var kept []semtype.Value
	var mapped []semtype.Value
	for _, elem := range source.List {
		v, err := evalLambdaBody(ctx, reg, lambda, elem)
		if err != nil {
			return semtype.Value{}, err
		}
		switch b.HOOp {
		case ir.OpFilter:
			if v.Bool {
				kept = append(kept, elem)
			}
		case ir.OpMap:
			mapped = append(mapped, v)
		case ir.OpAll:
			if !v.Bool {
				return semtype.BoolV(false), nil
			}
		case ir.OpAny:
			if v.Bool {
				return semtype.BoolV(true), nil
			}
		case ir.OpSortBy:
			kept = append(kept, elem)
		}
	}
	switch b.HOOp {
	case ir.OpFilter:
		return semtype.Value{Type: outType, List: kept}, nil
	case ir.OpMap:
		return semtype.Value{Type: outType, List: mapped}, nil
	case ir.OpAll:
		return semtype.BoolV(true), nil
	case ir.OpAny:
		return semtype.BoolV(false), nil
	case ir.OpSortBy:
		sorted := sortByLambda(ctx, reg, lambda, kept)
		return semtype.Value{Type: outType, List: sorted}, nil
	default:
		return semtype.Value{}, &EngineError{Detail: "unknown higher-order op"}
	}
}

func sortByLambda(ctx context.Context, reg *registry.Registry, lambda *ir.TypedLambda, items []semtype.Value) []semtype.Value {
	keys := make([]semtype.Value, len(items))
	for i, it := range items {
		k, err := evalLambdaBody(ctx, reg, lambda, it)
		if err == nil {
			keys[i] = k
		}
	}
	out := append([]semtype.Value(nil), items...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && lessKey(keys[j], keys[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return out
}

func lessKey(a, b semtype.Value) bool {
	switch a.Type.Kind {
	case semtype.KInt:
		return a.Int < b.Int
	case semtype.KFloat:
		return a.Flt < b.Flt
	case semtype.KString:
		return a.Str < b.Str
	default:
		return false
	}
}

// evalLambdaBody runs a minimal, pure interpreter over lambda's private
// node map, binding its single parameter to elem and returning the value
// at lambda.Output.
func evalLambdaBody(ctx context.Context, reg *registry.Registry, lambda *ir.TypedLambda, elem semtype.Value) (semtype.Value, error) {
	memo := make(map[ir.NodeId]semtype.Value, len(lambda.Body))
	var eval func(id ir.NodeId) (semtype.Value, error)
	eval = func(id ir.NodeId) (semtype.Value, error) {
		if v, ok := memo[id]; ok {
			return v, nil
		}
		n, ok := lambda.Body[id]
		if !ok {
			return semtype.Value{}, &EngineError{Detail: "lambda body references unknown node"}
		}
		var out semtype.Value
		var err error
		switch n.Tag {
		case ir.TagInput:
			out = elem
		case ir.TagLiteral:
			out = n.LiteralValue
		case ir.TagNot:
			var v semtype.Value
			if v, err = eval(n.Operand); err == nil {
				out = semtype.BoolV(!v.Bool)
			}
		case ir.TagAnd:
			var l, r semtype.Value
			if l, err = eval(n.Left); err == nil {
				if r, err = eval(n.Right); err == nil {
					out = semtype.BoolV(l.Bool && r.Bool)
				}
			}
		case ir.TagOr:
			var l, r semtype.Value
			if l, err = eval(n.Left); err == nil {
				if r, err = eval(n.Right); err == nil {
					out = semtype.BoolV(l.Bool || r.Bool)
				}
			}
		case ir.TagFieldAccess:
			var src semtype.Value
			if src, err = eval(n.FieldSource); err == nil {
				v, _ := src.FieldByName(src.Type, n.FieldName)
				out = v
			}
		case ir.TagConditional:
			var c semtype.Value
			if c, err = eval(n.CondCond); err == nil {
				if c.Bool {
					out, err = eval(n.CondThen)
				} else {
					out, err = eval(n.CondElse)
				}
			}
		case ir.TagModuleCall:
			m, gerr := reg.Get(n.ModuleName)
			if gerr != nil {
				return semtype.Value{}, gerr
			}
			args := make(map[string]semtype.Value, len(n.Params))
			for pname, pid := range n.Params {
				v, perr := eval(pid)
				if perr != nil {
					return semtype.Value{}, perr
				}
				args[pname] = v
			}
			out, err = m.Invoke(ctx, args)
		default:
			return semtype.Value{}, &EngineError{Detail: "lambda body contains unsupported node kind " + n.Tag.String()}
		}
		if err != nil {
			return semtype.Value{}, err
		}
		memo[id] = out
		return out, nil
	}
	return eval(lambda.Output)
}
