// Package optimize implements the optimizer pass framework and the three
// passes run to a fixed point: constant folding, common-subexpression
// elimination, and dead-code elimination.
package optimize

import "github.com/constellation-run/constellation/ir"

// Pass is a pure function over an IRPipeline, identified by Name for the
// Stats pass-name list.
type Pass struct {
	Name string
	Run  func(*ir.IRPipeline) (*ir.IRPipeline, error)
}

// TransformNodes returns a new pipeline with every node replaced by f(node).
// f must not change a node's Id.
func TransformNodes(p *ir.IRPipeline, f func(ir.IRNode) ir.IRNode) *ir.IRPipeline {
	np := p.Clone()
	for id, n := range np.Nodes {
		np.Nodes[id] = f(n)
	}
	return np
}

// FilterNodes drops every node for which keep returns false, along with its
// id from Inputs if present.
func FilterNodes(p *ir.IRPipeline, keep func(ir.IRNode) bool) *ir.IRPipeline {
	np := p.Clone()
	for id, n := range np.Nodes {
		if !keep(n) {
			delete(np.Nodes, id)
		}
	}
	filteredInputs := np.Inputs[:0:0]
	for _, id := range np.Inputs {
		if _, ok := np.Nodes[id]; ok {
			filteredInputs = append(filteredInputs, id)
		}
	}
	np.Inputs = filteredInputs
	return np
}

// ReplaceReferences rewrites every NodeId reference inside every node, and
// inside VariableBindings, through rewrite. This is the only mechanism a
// pass uses to merge or redirect dataflow (§4.D.1).
func ReplaceReferences(p *ir.IRPipeline, rewrite map[ir.NodeId]ir.NodeId) *ir.IRPipeline {
	sub := func(id ir.NodeId) ir.NodeId {
		if r, ok := rewrite[id]; ok {
			return r
		}
		return id
	}
	np := p.Clone()
	for id, n := range np.Nodes {
		np.Nodes[id] = rewriteNode(n, sub)
	}
	for name, id := range np.VariableBindings {
		np.VariableBindings[name] = sub(id)
	}
	newInputs := make([]ir.NodeId, len(np.Inputs))
	for i, id := range np.Inputs {
		newInputs[i] = sub(id)
	}
	np.Inputs = newInputs
	return np
}

func rewriteNode(n ir.IRNode, sub func(ir.NodeId) ir.NodeId) ir.IRNode {
	switch n.Tag {
	case ir.TagModuleCall:
		newParams := make(map[string]ir.NodeId, len(n.Params))
		for k, v := range n.Params {
			newParams[k] = sub(v)
		}
		n.Params = newParams
		if n.Options.Fallback != nil {
			f := sub(*n.Options.Fallback)
			n.Options.Fallback = &f
		}
	case ir.TagMerge, ir.TagAnd, ir.TagOr, ir.TagCoalesce:
		n.Left = sub(n.Left)
		n.Right = sub(n.Right)
	case ir.TagProject:
		n.ProjectSource = sub(n.ProjectSource)
	case ir.TagFieldAccess:
		n.FieldSource = sub(n.FieldSource)
	case ir.TagConditional:
		n.CondCond = sub(n.CondCond)
		n.CondThen = sub(n.CondThen)
		n.CondElse = sub(n.CondElse)
	case ir.TagNot:
		n.Operand = sub(n.Operand)
	case ir.TagGuard:
		n.Operand = sub(n.Operand)
		n.GuardCond = sub(n.GuardCond)
	case ir.TagBranch:
		arms := make([]ir.CondExprPair, len(n.BranchArms))
		for i, a := range n.BranchArms {
			arms[i] = ir.CondExprPair{Cond: sub(a.Cond), Expr: sub(a.Expr)}
		}
		n.BranchArms = arms
		n.BranchOtherwise = sub(n.BranchOtherwise)
	case ir.TagStringInterpolation:
		exprs := make([]ir.NodeId, len(n.Exprs))
		for i, e := range n.Exprs {
			exprs[i] = sub(e)
		}
		n.Exprs = exprs
	case ir.TagHigherOrder:
		n.HOSource = sub(n.HOSource)
	case ir.TagListLiteral:
		elems := make([]ir.NodeId, len(n.Elements))
		for i, e := range n.Elements {
			elems[i] = sub(e)
		}
		n.Elements = elems
	}
	return n
}
