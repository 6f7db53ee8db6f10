package emit

// Event is one entry in an execution's observability stream. §4.E.2 and §5
// name six events an execution produces, in this order per module node and
// bracketing the whole run: ExecutionStart, then per module node
// ModuleStart followed by ModuleComplete or ModuleFailed (in any interleaving
// across independent nodes), then ExecutionComplete or ExecutionCancelled.
// Event carries these as a flat record rather than six distinct Go types so
// a single Emitter method can handle all of them uniformly.
type Event struct {
	// ExecutionID identifies the execution that produced this event.
	ExecutionID string

	// Step is reserved for a future sequential step counter; executions
	// report 0 today since module nodes within a layer fire concurrently
	// and have no single linear position.
	Step int

	// NodeID names the module node this event concerns (the registered or
	// synthesized module name, e.g. "add" or "__merge"). Empty for the
	// three execution-level events.
	NodeID string

	// Msg is the event name: one of execution_start, execution_complete,
	// execution_cancelled, module_start, module_complete, module_failed.
	Msg string

	// Meta carries event-specific detail. The executor sets duration_ms on
	// module_complete, error on module_failed/execution_cancelled, and
	// policy/cache/fallback to record which on_error path or cache outcome
	// produced a module_complete.
	Meta map[string]interface{}
}
