// Package exec implements the DAG executor: layered parallel scheduling,
// per-module resilience policies (retry/timeout/backoff/fallback/on_error),
// lazy evaluation, priority scheduling, cancellation, and ordered event
// emission.
package exec

import (
	"time"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/semtype"
)

// StatusKind enumerates the lifecycle states of §3.5.
type StatusKind int

const (
	Pending StatusKind = iota
	Running
	Fired
	Failed
	Skipped
)

func (k StatusKind) String() string {
	switch k {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Fired:
		return "Fired"
	case Failed:
		return "Failed"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Status carries a lifecycle state plus the payload the source spec assigns
// to Fired (duration) and Failed (error).
type Status struct {
	Kind     StatusKind
	Duration time.Duration
	Err      error
}

// DataState is the runtime value and status of one DataNodeId.
type DataState struct {
	Type   semtype.SemType
	Value  semtype.Value
	Status Status
}

// ExecutionState is the terminal (and, during a run, incrementally
// produced) artifact of an execution (§3.5).
type ExecutionState struct {
	Data         map[dag.DataNodeId]DataState
	ModuleStatus map[dag.ModuleNodeId]Status
}

func newExecutionState(spec *dag.DagSpec) *ExecutionState {
	st := &ExecutionState{
		Data:         make(map[dag.DataNodeId]DataState, len(spec.Data)),
		ModuleStatus: make(map[dag.ModuleNodeId]Status, len(spec.Modules)),
	}
	for id, d := range spec.Data {
		st.Data[id] = DataState{Type: d.Type, Status: Status{Kind: Pending}}
	}
	for id := range spec.Modules {
		st.ModuleStatus[id] = Status{Kind: Pending}
	}
	return st
}
