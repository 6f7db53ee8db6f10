package ir

import "sort"

// IRPipeline is the immutable output of the builder and of every optimizer
// pass. Passes never mutate a pipeline in place; they produce a new one.
type IRPipeline struct {
	Nodes            map[NodeId]IRNode
	Inputs           []NodeId
	DeclaredOutputs  []string
	VariableBindings map[string]NodeId
}

// New returns an empty, mutable-by-the-builder pipeline. Once handed to the
// optimizer it must be treated as immutable.
func New() *IRPipeline {
	return &IRPipeline{
		Nodes:            make(map[NodeId]IRNode),
		VariableBindings: make(map[string]NodeId),
	}
}

// Clone makes a deep-enough copy for a pass to mutate without aliasing the
// input pipeline's maps/slices.
func (p *IRPipeline) Clone() *IRPipeline {
	np := &IRPipeline{
		Nodes:            make(map[NodeId]IRNode, len(p.Nodes)),
		Inputs:           append([]NodeId(nil), p.Inputs...),
		DeclaredOutputs:  append([]string(nil), p.DeclaredOutputs...),
		VariableBindings: make(map[string]NodeId, len(p.VariableBindings)),
	}
	for id, n := range p.Nodes {
		np.Nodes[id] = n
	}
	for k, v := range p.VariableBindings {
		np.VariableBindings[k] = v
	}
	return np
}

// TopologicalOrder returns NodeIds such that every dependency precedes its
// dependent. A cycle yields a CompileError of kind CycleDetected, which
// dag.Lower returns unchanged; neither function panics.
func (p *IRPipeline) TopologicalOrder() ([]NodeId, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[NodeId]int, len(p.Nodes))
	order := make([]NodeId, 0, len(p.Nodes))

	ids := make([]NodeId, 0, len(p.Nodes))
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var visit func(id NodeId) error
	visit = func(id NodeId) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return &CompileError{Kind: CycleDetected, Detail: "cycle detected in dependency graph"}
		}
		color[id] = gray
		n, ok := p.Nodes[id]
		if !ok {
			return &CompileError{Kind: UnboundVariable, Detail: "reference to missing node"}
		}
		for _, dep := range n.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// TopologicalLayers groups NodeIds into layers: every node in layer N
// depends only on nodes in layers < N, and every layer-N node can run
// concurrently once layer N-1 has completed.
func (p *IRPipeline) TopologicalLayers() ([][]NodeId, error) {
	order, err := p.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	layerOf := make(map[NodeId]int, len(order))
	maxLayer := 0
	for _, id := range order {
		n := p.Nodes[id]
		layer := 0
		for _, dep := range n.Dependencies() {
			if l := layerOf[dep] + 1; l > layer {
				layer = l
			}
		}
		layerOf[id] = layer
		if layer > maxLayer {
			maxLayer = layer
		}
	}
	layers := make([][]NodeId, maxLayer+1)
	for _, id := range order {
		l := layerOf[id]
		layers[l] = append(layers[l], id)
	}
	return layers, nil
}

// Validate checks the structural invariants listed in §3.2.
func (p *IRPipeline) Validate() error {
	for id, n := range p.Nodes {
		for _, dep := range n.Dependencies() {
			if _, ok := p.Nodes[dep]; !ok {
				return &CompileError{Kind: UnboundVariable, Detail: "node references unknown id"}
			}
		}
		_ = id
	}
	for _, name := range p.DeclaredOutputs {
		if _, ok := p.VariableBindings[name]; !ok {
			return &CompileError{Kind: UnboundVariable, Detail: "declared output has no binding: " + name}
		}
	}
	inputSet := make(map[NodeId]bool, len(p.Inputs))
	for _, id := range p.Inputs {
		inputSet[id] = true
	}
	for id, n := range p.Nodes {
		if n.Tag == TagInput && !inputSet[id] {
			return &CompileError{Kind: UnboundVariable, Detail: "Input node missing from inputs list"}
		}
	}
	if _, err := p.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}
