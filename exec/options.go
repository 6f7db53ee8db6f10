package exec

import (
	"time"

	"github.com/constellation-run/constellation/emit"
	"github.com/constellation-run/constellation/registry"
)

// Options configures an Engine. Mirrors the teacher's dual Options-struct /
// functional-Option pattern: callers may build an Options literal directly
// or layer Option values over a zero value.
type Options struct {
	Registry             *registry.Registry
	Emitter               emit.Emitter
	Metrics               *Metrics
	MaxConcurrent          int
	DefaultModuleTimeout  time.Duration
	WallClockBudget       time.Duration
}

// Option mutates an Options being built up.
type Option func(*Options) error

// WithEmitter sets the observability sink. Defaults to emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Options) error { o.Emitter = e; return nil }
}

// WithMetrics attaches a Prometheus metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) error { o.Metrics = m; return nil }
}

// WithMaxConcurrent bounds how many module nodes fire at once across every
// execution the Engine runs (in addition to any per-module Concurrency
// limit): the limiter is held by the Engine and shared by concurrent Runs.
func WithMaxConcurrent(n int) Option {
	return func(o *Options) error { o.MaxConcurrent = n; return nil }
}

// WithDefaultModuleTimeout sets the per-attempt deadline used when a
// ModuleCall leaves TimeoutMs unset.
func WithDefaultModuleTimeout(d time.Duration) Option {
	return func(o *Options) error { o.DefaultModuleTimeout = d; return nil }
}

// WithWallClockBudget bounds the whole execution's wall-clock time; expiry
// triggers the same path as explicit cancellation (§5).
func WithWallClockBudget(d time.Duration) Option {
	return func(o *Options) error { o.WallClockBudget = d; return nil }
}

func defaultOptions() Options {
	return Options{
		Emitter:       &emit.NullEmitter{},
		MaxConcurrent: 64,
	}
}

func resolveOptions(opts Options, options ...Option) (Options, error) {
	merged := defaultOptions()
	if opts.Registry != nil {
		merged.Registry = opts.Registry
	}
	if opts.Emitter != nil {
		merged.Emitter = opts.Emitter
	}
	if opts.Metrics != nil {
		merged.Metrics = opts.Metrics
	}
	if opts.MaxConcurrent > 0 {
		merged.MaxConcurrent = opts.MaxConcurrent
	}
	if opts.DefaultModuleTimeout > 0 {
		merged.DefaultModuleTimeout = opts.DefaultModuleTimeout
	}
	if opts.WallClockBudget > 0 {
		merged.WallClockBudget = opts.WallClockBudget
	}
	for _, o := range options {
		if err := o(&merged); err != nil {
			return Options{}, err
		}
	}
	return merged, nil
}
