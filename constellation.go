// Package constellation composes the semtype/registry/ir/optimize/dag/exec/
// cache/store/wire packages behind the §6 external interface: Compile, Run,
// RegisterModule, and cache introspection. It is the one package an
// embedder imports to get a working pipeline compiler and executor.
package constellation

import (
	"context"
	"fmt"

	"github.com/constellation-run/constellation/cache"
	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/exec"
	"github.com/constellation-run/constellation/ir"
	"github.com/constellation-run/constellation/optimize"
	"github.com/constellation-run/constellation/registry"
	"github.com/constellation-run/constellation/semtype"
)

// Frontend turns pipeline source text into IR via b, returning the
// caller-declared output names. §1 scopes the surface-language parser and
// type checker out of this core ("we assume an AST -> typed-expression
// stage exists; we specify only what the IR builder consumes from it"), so
// Compile takes a Frontend rather than owning a parser: the embedder's own
// parser/typer drives ir.Builder node-by-node as it walks its AST, exactly
// the division of labor ir.Builder's doc comment already describes.
type Frontend interface {
	Build(b *ir.Builder, source string) (declaredOutputs []string, err error)
}

// CompileOutput is the §6 Compile boundary's success value: the lowered
// DagSpec, the typed input/output schemas a caller needs to build an input
// record and interpret results, and the fingerprint the compilation cache
// validated this entry against.
type CompileOutput struct {
	Name         string
	Dag          *dag.DagSpec
	Inputs       map[string]semtype.SemType
	Outputs      map[string]semtype.SemType
	SourceHash   string
	RegistryHash string
	OptimizeStats optimize.Stats
}

// Engine is the embedder-facing facade: a module registry, a compilation
// cache, a pluggable Frontend, and the exec.Engine that runs compiled
// output. It holds the registry, the compilation cache, and (via
// exec.Engine) the global concurrency limiter and module result cache as
// explicit fields rather than package-level globals. Per-module
// concurrency and throttle state is created fresh for each Run.
type Engine struct {
	Registry *registry.Registry
	Cache    *cache.Cache
	Frontend Frontend
	Exec     *exec.Engine

	// Aggressive selects the §4.D.1 optimizer iteration cap (10 instead of
	// the default 3). It does not change which passes run.
	Aggressive bool
}

// EngineOption configures New, mirroring the codebase's functional-option
// convention (see exec.Option).
type EngineOption func(*Engine)

// WithCache overrides the default compilation cache.
func WithCache(c *cache.Cache) EngineOption {
	return func(e *Engine) { e.Cache = c }
}

// WithAggressiveOptimizer selects the 10-iteration fixpoint cap.
func WithAggressiveOptimizer() EngineOption {
	return func(e *Engine) { e.Aggressive = true }
}

// New builds an Engine. reg and frontend are required; execOpts configure
// the underlying exec.Engine (registry is wired through automatically).
func New(reg *registry.Registry, frontend Frontend, execOpts []exec.Option, opts ...EngineOption) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("constellation.New: Registry is required")
	}
	if frontend == nil {
		return nil, fmt.Errorf("constellation.New: Frontend is required")
	}
	execEngine, err := exec.New(exec.Options{Registry: reg}, execOpts...)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		Registry: reg,
		Cache:    cache.New(cache.DefaultMaxEntries, cache.DefaultMaxAge),
		Frontend: frontend,
		Exec:     execEngine,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Compile implements the §6 Compile boundary: (source_text, pipeline_name)
// -> Result<CompileOutput, []error>. A cache hit (matching source+registry
// hash, within TTL) short-circuits the builder/optimizer/lowering steps
// entirely (§2: "caching short-circuits steps C-E.1 when inputs match").
func (e *Engine) Compile(pipelineName, sourceText string) (*CompileOutput, []error) {
	sourceHash := cache.HashSource(sourceText)
	registryHash := cache.HashRegistry(e.Registry.Names())

	if cached, ok := e.Cache.Get(pipelineName, sourceHash, registryHash); ok {
		out, ok := cached.(*CompileOutput)
		if !ok {
			return nil, []error{fmt.Errorf("constellation: cache entry %q has unexpected type", pipelineName)}
		}
		return out, nil
	}

	b := ir.NewBuilder(e.Registry)
	declaredOutputs, err := e.Frontend.Build(b, sourceText)
	if err != nil {
		return nil, []error{err}
	}
	pipeline, err := b.Finish(declaredOutputs)
	if err != nil {
		return nil, []error{err}
	}

	driver := optimize.NewDriver(e.Aggressive)
	optimized, stats, err := driver.Run(pipeline)
	if err != nil {
		return nil, []error{err}
	}

	spec, err := dag.Lower(optimized, e.Registry, pipelineName)
	if err != nil {
		return nil, []error{err}
	}

	out := &CompileOutput{
		Name:          pipelineName,
		Dag:           spec,
		Inputs:        inputSchema(spec),
		Outputs:       outputSchema(spec),
		SourceHash:    sourceHash,
		RegistryHash:  registryHash,
		OptimizeStats: stats,
	}
	e.Cache.Put(pipelineName, sourceHash, registryHash, out)
	return out, nil
}

func inputSchema(spec *dag.DagSpec) map[string]semtype.SemType {
	out := make(map[string]semtype.SemType)
	for _, d := range spec.Data {
		if d.IsInput {
			out[d.InputName] = d.Type
		}
	}
	return out
}

func outputSchema(spec *dag.DagSpec) map[string]semtype.SemType {
	out := make(map[string]semtype.SemType, len(spec.OutputBindings))
	for name, id := range spec.OutputBindings {
		out[name] = spec.Data[id].Type
	}
	return out
}

// Run implements the §6 Run boundary: validates inputs (delegated to
// exec.Engine.Run, which implements §6's Missing/TypeMismatch/Unexpected
// checks), executes out.Dag to completion, and projects the terminal
// ExecutionState down to the declared output_record.
func (e *Engine) Run(ctx context.Context, out *CompileOutput, inputs map[string]semtype.Value) (map[string]semtype.Value, *exec.ExecutionState, error) {
	state, err := e.Exec.Run(ctx, out.Dag, inputs)
	if err != nil {
		return nil, state, err
	}
	result := make(map[string]semtype.Value, len(out.Dag.OutputBindings))
	for name, id := range out.Dag.OutputBindings {
		result[name] = state.Data[id].Value
	}
	return result, state, nil
}

// RegisterModule implements the §6 "Register module" boundary.
func (e *Engine) RegisterModule(name string, meta registry.Metadata, consumes, produces map[string]semtype.SemType, invoke registry.Invoke) error {
	return e.Registry.Register(name, &registry.Module{
		Metadata: meta,
		Consumes: consumes,
		Produces: produces,
		Invoke:   invoke,
	})
}

// RegisterNamespacedModule implements §4.B's register_namespaced, exposed
// at the same boundary as RegisterModule for front-ends that group modules
// under a provider prefix.
func (e *Engine) RegisterNamespacedModule(prefix, shortName string, meta registry.Metadata, consumes, produces map[string]semtype.SemType, invoke registry.Invoke) error {
	return e.Registry.RegisterNamespaced(prefix, shortName, &registry.Module{
		Metadata: meta,
		Consumes: consumes,
		Produces: produces,
		Invoke:   invoke,
	})
}

// CacheStats implements the §6 "Cache introspection: stats" boundary.
func (e *Engine) CacheStats() cache.Stats { return e.Cache.Stats() }

// InvalidateCache implements the §6 "Cache introspection: invalidate(name)"
// boundary.
func (e *Engine) InvalidateCache(pipelineName string) { e.Cache.Invalidate(pipelineName) }

// InvalidateAllCache implements the §6 "Cache introspection: invalidate_all"
// boundary.
func (e *Engine) InvalidateAllCache() { e.Cache.InvalidateAll() }
