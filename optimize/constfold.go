package optimize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/semtype"
)

// foldedValue holds a constant-folding result for one NodeId.
type foldedValue struct {
	Value semtype.Value
	Type  semtype.SemType
}

// pureBuiltins is the explicit, no-reflection whitelist of module names the
// folder treats as pure (§4.D.4, §9 "no dynamic reflection"). Arguments are
// supplied in ascending parameter-name order.
var pureBuiltins = map[string]func(args []semtype.Value) (semtype.Value, bool){
	"add": func(a []semtype.Value) (semtype.Value, bool) { return arith(a, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }) },
	"sub": func(a []semtype.Value) (semtype.Value, bool) { return arith(a, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }) },
	"mul": func(a []semtype.Value) (semtype.Value, bool) { return arith(a, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }) },
	"div": func(a []semtype.Value) (semtype.Value, bool) {
		if a[1].Type.Kind == semtype.KInt && a[1].Int == 0 {
			return semtype.Value{}, false
		}
		if a[1].Type.Kind == semtype.KFloat && a[1].Flt == 0 {
			return semtype.Value{}, false
		}
		return arith(a, func(x, y int64) int64 { return x / y }, func(x, y float64) float64 { return x / y })
	},
	"mod": func(a []semtype.Value) (semtype.Value, bool) {
		if a[1].Type.Kind == semtype.KInt && a[1].Int == 0 {
			return semtype.Value{}, false
		}
		return arith(a, func(x, y int64) int64 { return x % y }, nil)
	},
	"concat": func(a []semtype.Value) (semtype.Value, bool) {
		var b strings.Builder
		for _, v := range a {
			b.WriteString(v.Str)
		}
		return semtype.Str(b.String()), true
	},
	"length": func(a []semtype.Value) (semtype.Value, bool) {
		return semtype.IntV(int64(len(a[0].Str))), true
	},
	"upper": func(a []semtype.Value) (semtype.Value, bool) { return semtype.Str(strings.ToUpper(a[0].Str)), true },
	"lower": func(a []semtype.Value) (semtype.Value, bool) { return semtype.Str(strings.ToLower(a[0].Str)), true },
	"eq": func(a []semtype.Value) (semtype.Value, bool) {
		return semtype.BoolV(valuesEqual(a[0], a[1])), true
	},
	"lt":  func(a []semtype.Value) (semtype.Value, bool) { return semtype.BoolV(compareNum(a[0], a[1]) < 0), true },
	"lte": func(a []semtype.Value) (semtype.Value, bool) { return semtype.BoolV(compareNum(a[0], a[1]) <= 0), true },
	"gt":  func(a []semtype.Value) (semtype.Value, bool) { return semtype.BoolV(compareNum(a[0], a[1]) > 0), true },
	"gte": func(a []semtype.Value) (semtype.Value, bool) { return semtype.BoolV(compareNum(a[0], a[1]) >= 0), true },
}

func arith(a []semtype.Value, onInt func(int64, int64) int64, onFloat func(float64, float64) float64) (semtype.Value, bool) {
	if a[0].Type.Kind == semtype.KInt && a[1].Type.Kind == semtype.KInt {
		return semtype.IntV(onInt(a[0].Int, a[1].Int)), true
	}
	if onFloat != nil {
		return semtype.FltV(onFloat(asFloat(a[0]), asFloat(a[1]))), true
	}
	return semtype.Value{}, false
}

func asFloat(v semtype.Value) float64 {
	if v.Type.Kind == semtype.KInt {
		return float64(v.Int)
	}
	return v.Flt
}

func compareNum(a, b semtype.Value) int {
	x, y := asFloat(a), asFloat(b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func valuesEqual(a, b semtype.Value) bool {
	if a.Type.Kind != b.Type.Kind {
		return false
	}
	switch a.Type.Kind {
	case semtype.KInt:
		return a.Int == b.Int
	case semtype.KFloat:
		return a.Flt == b.Flt
	case semtype.KString:
		return a.Str == b.Str
	case semtype.KBoolean:
		return a.Bool == b.Bool
	default:
		return false
	}
}

// ConstantFold walks nodes in topological order, replacing every foldable
// node in place (same NodeId, so no reference rewriting is needed) with a
// Literal carrying the folded value and the node's original output type.
func ConstantFold(p *ir.IRPipeline) (*ir.IRPipeline, error) {
	order, err := p.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	folded := make(map[ir.NodeId]foldedValue, len(order))
	np := p.Clone()

	for _, id := range order {
		n := np.Nodes[id]
		v, ok := tryFold(n, folded)
		if !ok {
			continue
		}
		folded[id] = foldedValue{Value: v, Type: n.Type}
		np.Nodes[id] = ir.IRNode{
			Id:           id,
			Tag:          ir.TagLiteral,
			Type:         n.Type,
			Span:         n.Span,
			LiteralValue: v,
		}
	}
	return np, nil
}

func tryFold(n ir.IRNode, folded map[ir.NodeId]foldedValue) (semtype.Value, bool) {
	switch n.Tag {
	case ir.TagLiteral:
		return n.LiteralValue, true

	case ir.TagAnd:
		lf, lok := folded[n.Left]
		if lok && lf.Value.Type.Kind == semtype.KBoolean && !lf.Value.Bool {
			return semtype.BoolV(false), true
		}
		rf, rok := folded[n.Right]
		if !lok || !rok {
			return semtype.Value{}, false
		}
		return semtype.BoolV(lf.Value.Bool && rf.Value.Bool), true

	case ir.TagOr:
		lf, lok := folded[n.Left]
		if lok && lf.Value.Type.Kind == semtype.KBoolean && lf.Value.Bool {
			return semtype.BoolV(true), true
		}
		rf, rok := folded[n.Right]
		if !lok || !rok {
			return semtype.Value{}, false
		}
		return semtype.BoolV(lf.Value.Bool || rf.Value.Bool), true

	case ir.TagNot:
		of, ok := folded[n.Operand]
		if !ok || of.Value.Type.Kind != semtype.KBoolean {
			return semtype.Value{}, false
		}
		return semtype.BoolV(!of.Value.Bool), true

	case ir.TagConditional:
		cf, ok := folded[n.CondCond]
		if !ok || cf.Value.Type.Kind != semtype.KBoolean {
			return semtype.Value{}, false
		}
		branch := n.CondElse
		if cf.Value.Bool {
			branch = n.CondThen
		}
		bf, ok := folded[branch]
		if !ok {
			return semtype.Value{}, false
		}
		return bf.Value, true

	case ir.TagStringInterpolation:
		var b strings.Builder
		for i, part := range n.Parts {
			b.WriteString(part)
			if i < len(n.Exprs) {
				ef, ok := folded[n.Exprs[i]]
				if !ok {
					return semtype.Value{}, false
				}
				b.WriteString(formatPrimitive(ef.Value))
			}
		}
		return semtype.Str(b.String()), true

	case ir.TagModuleCall:
		fn, ok := pureBuiltins[n.ModuleName]
		if !ok {
			return semtype.Value{}, false
		}
		names := make([]string, 0, len(n.Params))
		for name := range n.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		args := make([]semtype.Value, 0, len(names))
		for _, name := range names {
			fv, ok := folded[n.Params[name]]
			if !ok {
				return semtype.Value{}, false
			}
			args = append(args, fv.Value)
		}
		return fn(args)

	default:
		return semtype.Value{}, false
	}
}

func formatPrimitive(v semtype.Value) string {
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
