package optimize

import "github.com/constellation-run/constellation/ir"

// DefaultMaxIterations and AggressiveMaxIterations are the fixpoint caps
// named in §4.D.1.
const (
	DefaultMaxIterations    = 3
	AggressiveMaxIterations = 10
)

// Stats reports what a Driver run did.
type Stats struct {
	NodesBefore  int
	NodesAfter   int
	Eliminated   int
	EliminatedPct float64
	Iterations   int
	PassNames    []string
}

// Driver runs [constant-folding, CSE, DCE] in that order (DCE last, so
// earlier passes' dead outputs are collected) repeatedly until the node
// count and id set stop changing, or MaxIterations is reached.
type Driver struct {
	MaxIterations int
	Passes        []Pass
}

// NewDriver builds the standard three-pass driver. aggressive selects the
// iteration cap named in §4.D.1; it does not change which passes run.
func NewDriver(aggressive bool) *Driver {
	max := DefaultMaxIterations
	if aggressive {
		max = AggressiveMaxIterations
	}
	return &Driver{
		MaxIterations: max,
		Passes: []Pass{
			{Name: "constant-folding", Run: ConstantFold},
			{Name: "cse", Run: CSE},
			{Name: "dce", Run: DCE},
		},
	}
}

func nodeIdSet(p *ir.IRPipeline) map[ir.NodeId]bool {
	s := make(map[ir.NodeId]bool, len(p.Nodes))
	for id := range p.Nodes {
		s[id] = true
	}
	return s
}

func sameIdSet(a, b map[ir.NodeId]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

// Run drives the pass sequence to a fixed point. When Passes is empty the
// input is returned unchanged with zero-count stats.
func (d *Driver) Run(p *ir.IRPipeline) (*ir.IRPipeline, Stats, error) {
	before := len(p.Nodes)
	if len(d.Passes) == 0 {
		return p, Stats{NodesBefore: before, NodesAfter: before}, nil
	}

	current := p
	prevIds := nodeIdSet(current)
	names := make([]string, 0, len(d.Passes))
	iterations := 0

	for iterations < d.MaxIterations {
		iterations++
		for _, pass := range d.Passes {
			next, err := pass.Run(current)
			if err != nil {
				return nil, Stats{}, err
			}
			current = next
			names = append(names, pass.Name)
		}
		ids := nodeIdSet(current)
		if len(ids) == len(prevIds) && sameIdSet(ids, prevIds) {
			break
		}
		prevIds = ids
	}

	after := len(current.Nodes)
	eliminated := before - after
	pct := 0.0
	if before > 0 {
		pct = float64(eliminated) / float64(before) * 100
	}
	return current, Stats{
		NodesBefore:   before,
		NodesAfter:    after,
		Eliminated:    eliminated,
		EliminatedPct: pct,
		Iterations:    iterations,
		PassNames:     names,
	}, nil
}
