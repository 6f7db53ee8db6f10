// Package dag implements lowering from IRPipeline to the executable
// DagSpec: a bipartite graph of module nodes (operations) and data nodes
// (typed value edges).
package dag

import (
	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/semtype"
)

// ModuleNodeId and DataNodeId are disjoint arena-index namespaces assigned
// during lowering.
type ModuleNodeId uint64
type DataNodeId uint64

// ModuleNodeSpec is one operation in the lowered DAG: either a real
// registered module (for an IR ModuleCall) or a synthesized built-in
// implementing a structural IR operation (Merge, Project, FieldAccess,
// boolean ops, Conditional, Branch, Guard, Coalesce, StringInterpolation,
// HigherOrder, ListLiteral).
type ModuleNodeSpec struct {
	Id        ModuleNodeId
	Name      string // registry name, or a synthesized "__kind[...]" name
	Synthetic bool
	Consumes  map[string]semtype.SemType
	Produces  map[string]semtype.SemType
	Options   ir.ModuleCallOptions

	// Fallback is the data node supplying the value used when all retries
	// of this module fail, resolved at lowering time from the IR-level
	// options.fallback NodeId (which is not meaningful in the DagSpec's id
	// space). Nil when no fallback is configured.
	Fallback *DataNodeId

	// Builtin carries the structural payload a synthesized module needs to
	// execute; nil for real registered modules.
	Builtin *BuiltinSpec
}

// BuiltinKind mirrors the ir.Tag a synthesized module implements.
type BuiltinKind int

const (
	BuiltinMerge BuiltinKind = iota
	BuiltinProject
	BuiltinFieldAccess
	BuiltinConditional
	BuiltinAnd
	BuiltinOr
	BuiltinNot
	BuiltinGuard
	BuiltinCoalesce
	BuiltinBranch
	BuiltinStringInterpolation
	BuiltinHigherOrder
	BuiltinListLiteral
)

// BuiltinSpec is the structural payload a synthesized built-in module needs
// at invocation time, since a module's Consumes/Produces schema alone does
// not capture e.g. which fields to project or what a lambda body does.
type BuiltinSpec struct {
	Kind BuiltinKind

	ProjectFields []string
	FieldName     string
	Parts         []string // StringInterpolation static parts
	BranchArity   int
	HOOp          ir.HigherOrderOp
	Lambda        *ir.TypedLambda
}

// DataNodeSpec is one typed value edge: either an external input or the
// output of exactly one producing module node.
type DataNodeSpec struct {
	Id       DataNodeId
	Type     semtype.SemType
	IsInput  bool
	InputName string

	// IsLiteral marks a data node materialized directly from a compile-time
	// constant rather than a module firing; execution seeds it pre-run.
	IsLiteral bool
	Literal   semtype.Value

	Producer *ModuleNodeId // nil for Input/Literal data nodes

	// ConsumerMap records, for every downstream module this data node
	// feeds, which parameter name it is bound to.
	ConsumerMap map[ModuleNodeId]string
}

// InEdge is a (data -> module) edge: data node id feeds module node id as
// the named parameter.
type InEdge struct {
	Data  DataNodeId
	Module ModuleNodeId
	Param string
}

// OutEdge is a (module -> data) edge: module node id produces data node id.
type OutEdge struct {
	Module ModuleNodeId
	Data   DataNodeId
}

// DagSpec is the lowered, immutable, read-only-shared executable form of an
// IRPipeline (§3.4).
type DagSpec struct {
	Name            string
	Modules         map[ModuleNodeId]ModuleNodeSpec
	Data            map[DataNodeId]DataNodeSpec
	InEdges         []InEdge
	OutEdges        []OutEdge
	DeclaredOutputs []string
	OutputBindings  map[string]DataNodeId
}
