// Package ir implements the sum-typed intermediate representation: IRNode
// and its sixteen tags, IRPipeline, TypedLambda, and the IR builder that
// turns a typed expression tree into a pipeline.
package ir

import "github.com/constellation-run/constellation/semtype"

// NodeId is an arena-style integer index into an IRPipeline's node map.
// Using an integer rather than a pointer removes cycle hazards and makes
// structural equality a pure function of payload plus indices (§9).
type NodeId uint64

// Tag discriminates the IRNode variants. Every optimizer pass and lowering
// rule must switch over Tag exhaustively; there is no open-class dispatch.
type Tag int

const (
	TagInput Tag = iota
	TagLiteral
	TagModuleCall
	TagMerge
	TagProject
	TagFieldAccess
	TagConditional
	TagAnd
	TagOr
	TagNot
	TagGuard
	TagCoalesce
	TagBranch
	TagStringInterpolation
	TagHigherOrder
	TagListLiteral
)

func (t Tag) String() string {
	switch t {
	case TagInput:
		return "Input"
	case TagLiteral:
		return "Literal"
	case TagModuleCall:
		return "ModuleCall"
	case TagMerge:
		return "Merge"
	case TagProject:
		return "Project"
	case TagFieldAccess:
		return "FieldAccess"
	case TagConditional:
		return "Conditional"
	case TagAnd:
		return "And"
	case TagOr:
		return "Or"
	case TagNot:
		return "Not"
	case TagGuard:
		return "Guard"
	case TagCoalesce:
		return "Coalesce"
	case TagBranch:
		return "Branch"
	case TagStringInterpolation:
		return "StringInterpolation"
	case TagHigherOrder:
		return "HigherOrder"
	case TagListLiteral:
		return "ListLiteral"
	default:
		return "Unknown"
	}
}

// Span is an optional source-text location, carried through for diagnostics.
type Span struct {
	Start, End int
	Valid      bool
}

// HigherOrderOp enumerates the collection operations a HigherOrder node may
// perform.
type HigherOrderOp int

const (
	OpFilter HigherOrderOp = iota
	OpMap
	OpAll
	OpAny
	OpSortBy
)

// CondExprPair is one (condition, expression) arm of a Branch node.
type CondExprPair struct {
	Cond NodeId
	Expr NodeId
}

// IRNode is a tagged variant: exactly the fields relevant to Tag are
// meaningful. Every node carries its own NodeId, its output SemType, and an
// optional source span.
type IRNode struct {
	Id       NodeId
	Tag      Tag
	Type     semtype.SemType
	Span     Span

	// Input
	InputName string

	// Literal
	LiteralValue semtype.Value

	// ModuleCall
	ModuleName string
	LocalAlias string
	Params     map[string]NodeId // param name -> NodeId
	Options    ModuleCallOptions

	// Merge, And, Or, Coalesce share Left/Right.
	Left  NodeId
	Right NodeId

	// Project
	ProjectSource NodeId
	ProjectFields []string

	// FieldAccess
	FieldSource NodeId
	FieldName   string

	// Conditional
	CondCond NodeId
	CondThen NodeId
	CondElse NodeId

	// Not, Guard (expr)
	Operand NodeId

	// Guard
	GuardCond NodeId

	// Branch
	BranchArms      []CondExprPair
	BranchOtherwise NodeId

	// StringInterpolation
	Parts []string
	Exprs []NodeId

	// HigherOrder
	HOOp     HigherOrderOp
	HOSource NodeId
	HOLambda *TypedLambda

	// ListLiteral
	Elements []NodeId
}

// TypedLambda is the self-contained body of a HigherOrder operation. No
// NodeId from the outer pipeline is referenced inside Body, and no NodeId
// from Body leaks to the outer pipeline: it is a private node map.
type TypedLambda struct {
	ParamNames []string
	ParamTypes []semtype.SemType
	Body       map[NodeId]IRNode
	Output     NodeId
	ReturnType semtype.SemType
}

// Dependencies returns every NodeId this node reads from, per the table in
// §3.2. The fallback in ModuleCall options is included: it is a dependency
// for reachability/liveness purposes even though it only fires on failure.
func (n IRNode) Dependencies() []NodeId {
	switch n.Tag {
	case TagInput, TagLiteral:
		return nil
	case TagModuleCall:
		deps := make([]NodeId, 0, len(n.Params)+1)
		for _, id := range n.Params {
			deps = append(deps, id)
		}
		if n.Options.Fallback != nil {
			deps = append(deps, *n.Options.Fallback)
		}
		return deps
	case TagMerge, TagAnd, TagOr, TagCoalesce:
		return []NodeId{n.Left, n.Right}
	case TagProject:
		return []NodeId{n.ProjectSource}
	case TagFieldAccess:
		return []NodeId{n.FieldSource}
	case TagConditional:
		return []NodeId{n.CondCond, n.CondThen, n.CondElse}
	case TagNot:
		return []NodeId{n.Operand}
	case TagGuard:
		return []NodeId{n.Operand, n.GuardCond}
	case TagBranch:
		deps := make([]NodeId, 0, len(n.BranchArms)*2+1)
		for _, arm := range n.BranchArms {
			deps = append(deps, arm.Cond, arm.Expr)
		}
		deps = append(deps, n.BranchOtherwise)
		return deps
	case TagStringInterpolation:
		return append([]NodeId(nil), n.Exprs...)
	case TagHigherOrder:
		return []NodeId{n.HOSource}
	case TagListLiteral:
		return append([]NodeId(nil), n.Elements...)
	default:
		return nil
	}
}
