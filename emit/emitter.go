// Package emit provides the observability event stream for Constellation
// Engine executions.
package emit

import "context"

// Emitter receives the six §4.E.2 events an execution produces: execution_start,
// execution_complete, execution_cancelled, module_start, module_complete, and
// module_failed. Implementations back different observability surfaces —
// stdout/file logging, in-memory history for tests, OpenTelemetry spans — and
// are selected via exec.WithEmitter.
//
// Implementations must be safe for concurrent use: one Emitter is shared by
// every execution an exec.Engine runs, and concurrent executions may call it
// at the same time.
// Emit must never block indefinitely or panic; a slow or failing backend
// should not stall an execution.
type Emitter interface {
	// Emit delivers a single event. The executor calls it for the
	// execution-level events at the start and end of an execution; module
	// events arrive through EmitBatch.
	Emit(event Event)

	// EmitBatch delivers a batch of events as one unit, in order. The
	// executor calls this once per completed execution layer so a backend
	// can amortize per-call overhead (one export round-trip instead of one
	// per module node); Emit remains available for the execution-level
	// bracket events, which have no layer to batch with.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any events buffered by EmitBatch or Emit have been
	// delivered to the backend, or ctx is done. The executor calls Flush
	// once after an execution finishes. Implementations with no internal
	// buffering may treat this as a no-op.
	Flush(ctx context.Context) error
}
