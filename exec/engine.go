package exec

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/emit"
	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/semtype"
)

// Engine runs a compiled DagSpec to completion, implementing the §4.E.2
// layered-parallel firing procedure: one goroutine per eligible module
// within a topological layer, resilience policy applied per module,
// ordered events pushed to an emit.Emitter as the run progresses.
//
// An Engine is safe for concurrent Run calls: all per-execution state lives
// on a runState value constructed fresh by Run; the Engine itself only
// holds shared, read-mostly resources (registry, emitter, metrics, the
// cross-execution result cache, and the global concurrency limiter).
type Engine struct {
	opts        Options
	resultCache *resultCache
	global      *concurrencyLimiter
}

// New builds an Engine. Registry is required; every other Option has a
// sane default (see defaultOptions).
func New(opts Options, options ...Option) (*Engine, error) {
	merged, err := resolveOptions(opts, options...)
	if err != nil {
		return nil, err
	}
	if merged.Registry == nil {
		return nil, &EngineError{Detail: "exec.New: Registry is required"}
	}
	return &Engine{
		opts:        merged,
		resultCache: newResultCache("memory"),
		global:      newConcurrencyLimiter(uint32(merged.MaxConcurrent)),
	}, nil
}

// runState holds everything specific to one Run call.
type runState struct {
	eng     *Engine
	spec    *dag.DagSpec
	st      *ExecutionState
	execID  string
	layerOf map[dag.ModuleNodeId]int
	needed  map[dag.DataNodeId]bool
	limiter map[dag.ModuleNodeId]*concurrencyLimiter
	bucket  map[dag.ModuleNodeId]*tokenBucket
	events  []emit.Event
	mu      sync.Mutex // guards st, propagated skip/fail state, and events
}

// pushEvent buffers a module-level event instead of emitting it immediately.
// The layer loop in Run flushes the buffer with one EmitBatch call per
// completed layer, so module_start/module_complete/module_failed events for
// concurrently-firing nodes reach the Emitter together.
func (rs *runState) pushEvent(nodeID, msg string, meta map[string]interface{}) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, emit.Event{ExecutionID: rs.execID, NodeID: nodeID, Msg: msg, Meta: meta})
}

// drainEvents removes and returns every buffered event, or nil if none are
// pending.
func (rs *runState) drainEvents() []emit.Event {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.events) == 0 {
		return nil
	}
	out := rs.events
	rs.events = nil
	return out
}

// Run validates inputs, seeds Input/Literal data nodes, and fires every
// module node in topological-layer order until the DAG is fully resolved,
// a module fails with OnErrorPropagate and no usable fallback, or ctx
// (plus any WallClockBudget) is cancelled.
func (e *Engine) Run(ctx context.Context, spec *dag.DagSpec, inputs map[string]semtype.Value) (*ExecutionState, error) {
	if err := validateInputs(spec, inputs); err != nil {
		return nil, err
	}

	if e.opts.WallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.WallClockBudget)
		defer cancel()
	}

	execID := uuid.NewString()
	st := newExecutionState(spec)
	seedData(spec, st, inputs)

	rs := &runState{
		eng:     e,
		spec:    spec,
		st:      st,
		execID:  execID,
		layerOf: layerModules(spec),
		needed:  neededData(spec),
		limiter: make(map[dag.ModuleNodeId]*concurrencyLimiter),
		bucket:  make(map[dag.ModuleNodeId]*tokenBucket),
	}

	e.emit(execID, 0, "", "execution_start", nil)

	layers := make(map[int][]dag.ModuleNodeId)
	maxLayer := 0
	for mid, l := range rs.layerOf {
		layers[l] = append(layers[l], mid)
		if l > maxLayer {
			maxLayer = l
		}
	}

	var firstFailure error
	for l := 0; l <= maxLayer && firstFailure == nil; l++ {
		mods := sortByPriority(layers[l], spec)
		if ctx.Err() != nil {
			firstFailure = &ExecutionError{Kind: ExecCancelled, Detail: "context cancelled before layer", Cause: ctx.Err()}
			break
		}
		var wg sync.WaitGroup
		errCh := make(chan error, len(mods))
		for _, mid := range mods {
			mid := mid
			if !rs.eligible(mid) {
				rs.markSkipped(mid)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.global.acquire()
				defer e.global.release()
				if err := rs.fireModule(ctx, mid); err != nil {
					errCh <- err
				}
			}()
		}
		wg.Wait()
		close(errCh)
		if batch := rs.drainEvents(); len(batch) > 0 {
			_ = e.opts.Emitter.EmitBatch(ctx, batch)
		}
		for err := range errCh {
			if firstFailure == nil {
				firstFailure = err
			}
		}
	}

	if firstFailure != nil {
		e.emit(execID, 0, "", "execution_cancelled", map[string]interface{}{"error": firstFailure.Error()})
		_ = e.opts.Emitter.Flush(context.Background())
		return st, firstFailure
	}

	e.emit(execID, 0, "", "execution_complete", nil)
	_ = e.opts.Emitter.Flush(context.Background())
	return st, nil
}

func validateInputs(spec *dag.DagSpec, inputs map[string]semtype.Value) error {
	declared := make(map[string]bool, len(inputs))
	for _, d := range spec.Data {
		if !d.IsInput {
			continue
		}
		declared[d.InputName] = true
		v, ok := inputs[d.InputName]
		if !ok {
			return &InputError{Kind: InputMissing, Name: d.InputName}
		}
		if !semtype.Equivalent(v.Type, d.Type) {
			return &InputError{Kind: InputTypeMismatch, Name: d.InputName}
		}
	}
	for name := range inputs {
		if !declared[name] {
			return &InputError{Kind: InputUnexpected, Name: name}
		}
	}
	return nil
}

func seedData(spec *dag.DagSpec, st *ExecutionState, inputs map[string]semtype.Value) {
	for id, d := range spec.Data {
		if d.IsInput {
			ds := st.Data[id]
			ds.Value = inputs[d.InputName]
			ds.Status = Status{Kind: Fired}
			st.Data[id] = ds
		} else if d.IsLiteral {
			ds := st.Data[id]
			ds.Value = d.Literal
			ds.Status = Status{Kind: Fired}
			st.Data[id] = ds
		}
	}
}

// layerModules assigns each module node a layer number one greater than
// the max layer of any module producing one of its inputs (0 if every
// input comes directly from an Input or Literal data node), mirroring
// ir.IRPipeline.TopologicalLayers but over the lowered DagSpec.
func layerModules(spec *dag.DagSpec) map[dag.ModuleNodeId]int {
	layer := make(map[dag.ModuleNodeId]int, len(spec.Modules))
	var resolve func(mid dag.ModuleNodeId) int
	visiting := make(map[dag.ModuleNodeId]bool)
	resolve = func(mid dag.ModuleNodeId) int {
		if l, ok := layer[mid]; ok {
			return l
		}
		if visiting[mid] {
			return 0 // cycle guarded against at the IR level; defensive only
		}
		visiting[mid] = true
		best := 0
		for _, e := range spec.InEdges {
			if e.Module != mid {
				continue
			}
			d := spec.Data[e.Data]
			if d.Producer == nil {
				continue
			}
			if l := resolve(*d.Producer) + 1; l > best {
				best = l
			}
		}
		// A fallback subgraph is a dependency per ir.IRNode.Dependencies
		// ("all input NodeIds ∪ fallback", §3.2) even though it is not wired
		// as an in_edge (its data node feeds no consumes parameter of mid).
		// Without this, a fallback module with no other dependents could
		// land in the same layer as mid and still be Pending when mid's
		// retry loop exhausts and checks it.
		if fb := spec.Modules[mid].Fallback; fb != nil {
			if d, ok := spec.Data[*fb]; ok && d.Producer != nil {
				if l := resolve(*d.Producer) + 1; l > best {
					best = l
				}
			}
		}
		visiting[mid] = false
		layer[mid] = best
		return best
	}
	for mid := range spec.Modules {
		resolve(mid)
	}
	return layer
}

// neededData computes the backward reachability closure from the declared
// outputs, following each data node's producer and that producer's own
// inputs. A LazyEval module only fires when its output lands in this set.
func neededData(spec *dag.DagSpec) map[dag.DataNodeId]bool {
	needed := make(map[dag.DataNodeId]bool)
	var mark func(d dag.DataNodeId)
	mark = func(d dag.DataNodeId) {
		if needed[d] {
			return
		}
		needed[d] = true
		ds, ok := spec.Data[d]
		if !ok || ds.Producer == nil {
			return
		}
		for _, e := range spec.InEdges {
			if e.Module == *ds.Producer {
				mark(e.Data)
			}
		}
	}
	for _, d := range spec.OutputBindings {
		mark(d)
	}
	return needed
}

func sortByPriority(mods []dag.ModuleNodeId, spec *dag.DagSpec) []dag.ModuleNodeId {
	out := append([]dag.ModuleNodeId(nil), mods...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && priorityOf(spec, out[j]) > priorityOf(spec, out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func priorityOf(spec *dag.DagSpec, mid dag.ModuleNodeId) int {
	m := spec.Modules[mid]
	if m.Synthetic || m.Options.Priority == 0 {
		return int(ir.DefaultPriority)
	}
	return int(m.Options.Priority)
}

// eligible reports whether mid should fire at all: a lazy module only
// fires if its output is in the needed closure.
func (rs *runState) eligible(mid dag.ModuleNodeId) bool {
	m := rs.spec.Modules[mid]
	if !m.Options.LazyEval {
		return true
	}
	for _, e := range rs.spec.OutEdges {
		if e.Module == mid && rs.needed[e.Data] {
			return true
		}
	}
	return false
}

func (rs *runState) markSkipped(mid dag.ModuleNodeId) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.st.ModuleStatus[mid] = Status{Kind: Skipped}
	for _, e := range rs.spec.OutEdges {
		if e.Module == mid {
			ds := rs.st.Data[e.Data]
			ds.Status = Status{Kind: Skipped}
			rs.st.Data[e.Data] = ds
		}
	}
}

// fireModule implements the §4.E.2 five-step firing procedure for one
// module node: gather inputs, check the result cache, acquire
// throttle/concurrency permits, retry with backoff, then fall back or
// apply the on_error policy.
func (rs *runState) fireModule(ctx context.Context, mid dag.ModuleNodeId) error {
	e := rs.eng
	m := rs.spec.Modules[mid]

	inputs, skip := rs.gatherInputs(mid)
	if skip {
		rs.markSkipped(mid)
		return nil
	}

	outData := rs.outputOf(mid)
	outType := rs.st.Data[outData].Type

	rs.setRunning(mid)
	rs.pushEvent(moduleLabel(m), "module_start", nil)
	start := time.Now()

	if m.Synthetic {
		v, err := runBuiltin(ctx, e.opts.Registry, m.Builtin, inputs, outType)
		if err != nil {
			rs.fail(mid, outData, err)
			rs.pushEvent(moduleLabel(m), "module_failed", map[string]interface{}{"error": err.Error()})
			return err
		}
		rs.complete(mid, outData, v, time.Since(start))
		rs.pushEvent(moduleLabel(m), "module_complete", map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()})
		return nil
	}

	if m.Options.CacheMs > 0 {
		key := canonicalizeInputs(m.Name, inputs)
		if v, ok := e.resultCache.get(key); ok {
			e.opts.Metrics.incCacheEvent("hit")
			rs.complete(mid, outData, v, time.Since(start))
			rs.pushEvent(moduleLabel(m), "module_complete", map[string]interface{}{"duration_ms": time.Since(start).Milliseconds(), "cache": "hit"})
			return nil
		}
		e.opts.Metrics.incCacheEvent("miss")
	}

	bucket := rs.bucketFor(mid, m)
	bucket.acquire(func() bool { return ctx.Err() != nil })
	limiter := rs.limiterFor(mid, m)
	limiter.acquire()
	defer limiter.release()

	v, invokeErr := rs.retryInvoke(ctx, m, inputs)

	if invokeErr == nil {
		if m.Options.CacheMs > 0 {
			key := canonicalizeInputs(m.Name, inputs)
			e.resultCache.put(key, v, time.Duration(m.Options.CacheMs)*time.Millisecond)
		}
		rs.complete(mid, outData, v, time.Since(start))
		rs.pushEvent(moduleLabel(m), "module_complete", map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()})
		return nil
	}

	if m.Fallback != nil {
		if fb, ok := rs.st.Data[*m.Fallback]; ok && fb.Status.Kind == Fired {
			rs.complete(mid, outData, fb.Value, time.Since(start))
			rs.pushEvent(moduleLabel(m), "module_complete", map[string]interface{}{"duration_ms": time.Since(start).Milliseconds(), "fallback": true})
			return nil
		}
	}

	return rs.applyOnError(m, mid, outData, outType, invokeErr)
}

func (rs *runState) applyOnError(m dag.ModuleNodeSpec, mid dag.ModuleNodeId, outData dag.DataNodeId, outType semtype.SemType, invokeErr error) error {
	switch m.Options.OnError {
	case ir.OnErrorSkip:
		rs.markSkipped(mid)
		rs.pushEvent(moduleLabel(m), "module_failed", map[string]interface{}{"error": invokeErr.Error(), "policy": "skip"})
		return nil

	case ir.OnErrorLog:
		rs.pushEvent(moduleLabel(m), "module_failed", map[string]interface{}{"error": invokeErr.Error(), "policy": "log"})
		rs.markSkipped(mid)
		return nil

	case ir.OnErrorWrap:
		if outType.Kind == semtype.KOptional {
			rs.complete(mid, outData, semtype.None(*outType.Inner), 0)
			rs.pushEvent(moduleLabel(m), "module_complete", map[string]interface{}{"policy": "wrap"})
			return nil
		}
		if v, ok := errorVariantSentinel(outType, invokeErr); ok {
			rs.complete(mid, outData, v, 0)
			rs.pushEvent(moduleLabel(m), "module_complete", map[string]interface{}{"policy": "wrap"})
			return nil
		}
		// The builder rejects on_error=Wrap for any other output shape
		// (see ir.wrapSentinelCompatible), so this is unreachable for
		// pipelines built through ir.Builder; kept as a defensive fallback.
		rs.markSkipped(mid)
		rs.pushEvent(moduleLabel(m), "module_failed", map[string]interface{}{"error": invokeErr.Error(), "policy": "wrap-skip"})
		return nil

	default: // OnErrorPropagate
		rs.fail(mid, outData, invokeErr)
		rs.pushEvent(moduleLabel(m), "module_failed", map[string]interface{}{"error": invokeErr.Error(), "policy": "propagate"})
		return &ExecutionError{Kind: ExecFailed, Detail: "module " + m.Name + " failed", Cause: invokeErr}
	}
}

// retryInvoke runs the §4.E.2 step-4 loop over attempts a = 0...Retry:
// every attempt, including the first, waits delay_ms*backoff_factor(a)
// before invoking (§3.3: delay_ms is the "initial delay before first
// attempt", not a retry-only pause).
func (rs *runState) retryInvoke(ctx context.Context, m dag.ModuleNodeSpec, inputs map[string]semtype.Value) (semtype.Value, error) {
	mod, err := rs.eng.opts.Registry.Get(m.Name)
	if err != nil {
		return semtype.Value{}, err
	}
	timeout := rs.eng.opts.DefaultModuleTimeout
	if m.Options.TimeoutMs > 0 {
		timeout = time.Duration(m.Options.TimeoutMs) * time.Millisecond
	}

	var lastErr error
	attempts := int(m.Options.Retry) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			rs.eng.opts.Metrics.incRetry(m.Name)
		}
		time.Sleep(backoffDelay(m.Options.DelayMs, m.Options.Backoff, attempt))
		if ctx.Err() != nil {
			return semtype.Value{}, ctx.Err()
		}
		callCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		v, err := mod.Invoke(callCtx, inputs)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return semtype.Value{}, lastErr
}

func (rs *runState) gatherInputs(mid dag.ModuleNodeId) (map[string]semtype.Value, bool) {
	inputs := make(map[string]semtype.Value)
	skip := false
	for _, e := range rs.spec.InEdges {
		if e.Module != mid {
			continue
		}
		rs.mu.Lock()
		ds := rs.st.Data[e.Data]
		rs.mu.Unlock()
		if ds.Status.Kind == Skipped {
			skip = true
			continue
		}
		inputs[e.Param] = ds.Value
	}
	return inputs, skip
}

func (rs *runState) outputOf(mid dag.ModuleNodeId) dag.DataNodeId {
	for _, e := range rs.spec.OutEdges {
		if e.Module == mid {
			return e.Data
		}
	}
	return 0
}

func (rs *runState) setRunning(mid dag.ModuleNodeId) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.st.ModuleStatus[mid] = Status{Kind: Running}
	rs.eng.opts.Metrics.incInflight()
}

func (rs *runState) complete(mid dag.ModuleNodeId, outData dag.DataNodeId, v semtype.Value, dur time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.st.ModuleStatus[mid] = Status{Kind: Fired, Duration: dur}
	ds := rs.st.Data[outData]
	ds.Value = v
	ds.Status = Status{Kind: Fired, Duration: dur}
	rs.st.Data[outData] = ds
	rs.eng.opts.Metrics.decInflight()
	rs.eng.opts.Metrics.observeLatency(rs.spec.Modules[mid].Name, "ok", float64(dur.Milliseconds()))
}

func (rs *runState) fail(mid dag.ModuleNodeId, outData dag.DataNodeId, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.st.ModuleStatus[mid] = Status{Kind: Failed, Err: err}
	ds := rs.st.Data[outData]
	ds.Status = Status{Kind: Failed, Err: err}
	rs.st.Data[outData] = ds
	rs.eng.opts.Metrics.decInflight()
}

func (rs *runState) bucketFor(mid dag.ModuleNodeId, m dag.ModuleNodeSpec) *tokenBucket {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if b, ok := rs.bucket[mid]; ok {
		return b
	}
	var b *tokenBucket
	if m.Options.ThrottleCount > 0 {
		b = newTokenBucket(m.Options.ThrottleCount, m.Options.ThrottlePerMs)
	}
	rs.bucket[mid] = b
	return b
}

func (rs *runState) limiterFor(mid dag.ModuleNodeId, m dag.ModuleNodeSpec) *concurrencyLimiter {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if l, ok := rs.limiter[mid]; ok {
		return l
	}
	l := newConcurrencyLimiter(m.Options.Concurrency)
	rs.limiter[mid] = l
	return l
}

// errorVariantSentinel builds the Wrap sentinel for a union output type
// that declares an Error variant (the other branch of the §9 decision).
func errorVariantSentinel(outType semtype.SemType, cause error) (semtype.Value, bool) {
	for _, v := range outType.Variants {
		if v.Name != "Error" {
			continue
		}
		payload := semtype.Value{Type: v.Type}
		if v.Type.Kind == semtype.KString {
			payload = semtype.Str(cause.Error())
		}
		return semtype.Value{Type: outType, UnionTag: "Error", Union: &payload}, true
	}
	return semtype.Value{}, false
}

func moduleLabel(m dag.ModuleNodeSpec) string {
	return m.Name
}

func (e *Engine) emit(execID string, step int, nodeID, msg string, meta map[string]interface{}) {
	e.opts.Emitter.Emit(emit.Event{ExecutionID: execID, Step: step, NodeID: nodeID, Msg: msg, Meta: meta})
}
