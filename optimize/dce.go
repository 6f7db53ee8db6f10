package optimize

import "github.com/constellation-run/constellation/ir"

// DCE drops every node unreachable from the declared outputs. An Input
// node is live only if reachable from an output; unreferenced inputs are
// removed from both Nodes and Inputs.
func DCE(p *ir.IRPipeline) (*ir.IRPipeline, error) {
	live := make(map[ir.NodeId]bool, len(p.Nodes))
	var walk func(id ir.NodeId)
	walk = func(id ir.NodeId) {
		if live[id] {
			return
		}
		live[id] = true
		n, ok := p.Nodes[id]
		if !ok {
			return
		}
		for _, dep := range n.Dependencies() {
			walk(dep)
		}
	}
	for _, name := range p.DeclaredOutputs {
		walk(p.VariableBindings[name])
	}
	return FilterNodes(p, func(n ir.IRNode) bool { return live[n.Id] }), nil
}
