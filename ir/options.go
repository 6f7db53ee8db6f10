package ir

// Backoff selects how the delay between retry attempts grows.
type Backoff int

const (
	BackoffFixed Backoff = iota
	BackoffLinear
	BackoffExponential
)

// OnError selects what happens after a module call exhausts retries (and
// has no fallback, or the fallback itself fails).
type OnError int

const (
	OnErrorPropagate OnError = iota
	OnErrorSkip
	OnErrorLog
	OnErrorWrap
)

// ModuleCallOptions is the call-site resilience policy record (§3.3). Every
// field is optional; zero values mean "unset", not "zero" — Retry==0 means
// no retries, which is also the unset default, and Priority==0 means
// DefaultPriority. The struct does not record whether a field was set
// explicitly to zero.
type ModuleCallOptions struct {
	Retry         uint32
	TimeoutMs     uint64
	DelayMs       uint64
	Backoff       Backoff
	Fallback      *NodeId
	CacheMs       uint64
	CacheBackend  string
	ThrottleCount uint32
	ThrottlePerMs uint64
	Concurrency   uint32
	OnError       OnError
	LazyEval      bool
	Priority      uint8
}

// DefaultPriority is used when a ModuleCallOptions leaves Priority unset.
const DefaultPriority uint8 = 50
