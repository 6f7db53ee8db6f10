package optimize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/constellation-run/constellation/ir"
)

// CSE deduplicates structurally identical nodes. Two nodes are equivalent
// when they share an operation tag, identical payload, identical
// dependency NodeIds after substitution under the current equivalence map,
// and identical output type. Input nodes and ModuleCall nodes without a
// positive CacheMs are never CSE candidates: they may be observably
// side-effecting, and a ModuleCall's resilience Options are folded into its
// key so differently-configured calls to the same module stay distinct.
func CSE(p *ir.IRPipeline) (*ir.IRPipeline, error) {
	order, err := p.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	rep := make(map[string]ir.NodeId) // canonical key -> representative
	rewrite := make(map[ir.NodeId]ir.NodeId)
	sub := func(id ir.NodeId) ir.NodeId {
		if r, ok := rewrite[id]; ok {
			return r
		}
		return id
	}

	for _, id := range order {
		n := p.Nodes[id]
		if !isCandidate(n) {
			continue
		}
		key := canonicalKey(n, sub)
		if existing, ok := rep[key]; ok {
			rewrite[id] = existing
			continue
		}
		rep[key] = id
	}

	if len(rewrite) == 0 {
		return p, nil
	}
	np := ReplaceReferences(p, rewrite)
	return FilterNodes(np, func(n ir.IRNode) bool {
		_, dropped := rewrite[n.Id]
		return !dropped
	}), nil
}

func isCandidate(n ir.IRNode) bool {
	switch n.Tag {
	case ir.TagInput:
		return false
	case ir.TagModuleCall:
		return n.Options.CacheMs > 0
	default:
		return true
	}
}

// canonicalKey builds operation + sorted payload + substituted-deps.
func canonicalKey(n ir.IRNode, sub func(ir.NodeId) ir.NodeId) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|", n.Tag)

	deps := n.Dependencies()
	subbed := make([]ir.NodeId, len(deps))
	for i, d := range deps {
		subbed[i] = sub(d)
	}

	switch n.Tag {
	case ir.TagLiteral:
		fmt.Fprintf(&b, "lit=%v", n.LiteralValue)
	case ir.TagModuleCall:
		fmt.Fprintf(&b, "mod=%s|opts=%+v|", n.ModuleName, n.Options)
		keys := make([]string, 0, len(n.Params))
		for k := range n.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%d,", k, sub(n.Params[k]))
		}
	case ir.TagProject:
		fmt.Fprintf(&b, "fields=%v|src=%d", n.ProjectFields, subbed[0])
	case ir.TagFieldAccess:
		fmt.Fprintf(&b, "field=%s|src=%d", n.FieldName, subbed[0])
	case ir.TagStringInterpolation:
		fmt.Fprintf(&b, "parts=%v|exprs=%v", n.Parts, subbed)
	case ir.TagHigherOrder:
		fmt.Fprintf(&b, "op=%d|src=%d|lambda=%s", n.HOOp, subbed[0], hashLambda(n.HOLambda))
	default:
		fmt.Fprintf(&b, "deps=%v", subbed)
	}
	fmt.Fprintf(&b, "|type=%+v", n.Type)
	return b.String()
}

// hashLambda builds a structural key for a TypedLambda's private body so
// two HigherOrder nodes over the same source are only merged when their
// lambdas compute the same thing (§8 property 5: CSE must not merge nodes
// with different semantics). Lambda bodies have their own node arena
// (ir.NewLambdaBuilder starts a fresh id counter), so two structurally
// identical lambdas produce identical ids and need no substitution map;
// the ids themselves are part of a stable, deterministic construction
// order, not outer-pipeline references.
func hashLambda(l *ir.TypedLambda) string {
	if l == nil {
		return "nil"
	}
	ids := make([]ir.NodeId, 0, len(l.Body))
	for id := range l.Body {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "params=%v:%+v|out=%d|ret=%+v|body=[", l.ParamNames, l.ParamTypes, l.Output, l.ReturnType)
	for _, id := range ids {
		n := l.Body[id]
		fmt.Fprintf(&b, "%d:%s:%s;", id, n.Tag, lambdaNodePayload(n))
	}
	b.WriteString("]")
	return b.String()
}

// lambdaNodePayload renders one lambda-body node's operation-specific
// payload for hashLambda. It recurses into nested HigherOrder lambdas and
// otherwise falls back to dependencies + literal + type, which is enough
// to distinguish any two differently-built nodes sharing a tag.
func lambdaNodePayload(n ir.IRNode) string {
	switch n.Tag {
	case ir.TagHigherOrder:
		return fmt.Sprintf("op=%d|src=%d|lambda=%s", n.HOOp, n.HOSource, hashLambda(n.HOLambda))
	case ir.TagModuleCall:
		keys := make([]string, 0, len(n.Params))
		for k := range n.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var params strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&params, "%s=%d,", k, n.Params[k])
		}
		return fmt.Sprintf("mod=%s|opts=%+v|params=%s", n.ModuleName, n.Options, params.String())
	default:
		return fmt.Sprintf("deps=%v|lit=%v|type=%+v", n.Dependencies(), n.LiteralValue, n.Type)
	}
}
