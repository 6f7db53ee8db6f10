// Package registry implements the module registry: name resolution
// (dot-separated, with short-name aliasing), type schemas, and the opaque
// async callable boundary external modules are invoked through.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/constellation-run/constellation/semtype"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z_0-9]*(\.[a-zA-Z_][a-zA-Z_0-9]*)*$`)

// Metadata describes a module independent of its callable.
type Metadata struct {
	Name        string
	Description string
	Version     string
}

// Invoke is the opaque async callable a module exposes. The registry and
// compiler never inspect its implementation; only Consumes/Produces are
// visible to the type checker.
type Invoke func(ctx context.Context, input map[string]semtype.Value) (semtype.Value, error)

// Module is a registered callable plus its schemas.
type Module struct {
	Metadata Metadata
	Consumes map[string]semtype.SemType
	Produces map[string]semtype.SemType
	Invoke   Invoke
}

// ErrorKind enumerates ModuleError causes.
type ErrorKind int

const (
	NotFound ErrorKind = iota
	TypeMismatchErr
	RuntimeError
	Timeout
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case TypeMismatchErr:
		return "TypeError"
	case RuntimeError:
		return "RuntimeError"
	case Timeout:
		return "Timeout"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ModuleError is returned by Invoke and by registry lookups.
type ModuleError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ModuleError) Unwrap() error { return e.Cause }

// RegistryErrorKind enumerates Register/RegisterNamespaced/Deregister
// failures, surfaced at the §6 RegisterModule boundary.
type RegistryErrorKind int

const (
	InvalidName RegistryErrorKind = iota
	DuplicateName
)

// RegistryError reports a registration-time failure.
type RegistryError struct {
	Kind    RegistryErrorKind
	Message string
}

func (e *RegistryError) Error() string { return e.Message }

// Registry is the process-wide, read-mostly name -> Module table. It is
// safe for concurrent use; writes only happen at startup or during provider
// reconnection (§5).
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Module
	aliases map[string]string // short name -> full name it currently resolves to
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byName:  make(map[string]*Module),
		aliases: make(map[string]string),
	}
}

// Register adds a module under a fully-qualified, dot-separated name. Fails
// if the name is malformed or already registered.
func (r *Registry) Register(name string, m *Module) error {
	if !namePattern.MatchString(name) {
		return &RegistryError{Kind: InvalidName, Message: "invalid module name: " + name}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return &RegistryError{Kind: DuplicateName, Message: "module already registered: " + name}
	}
	r.byName[name] = m
	return nil
}

// RegisterNamespaced registers m under "prefix.shortName" and, if no other
// module currently owns the bare short name, additionally aliases shortName
// to it. The alias is sticky: a later duplicate short name never takes it
// over, and it is removed only when the module it points at is
// deregistered.
func (r *Registry) RegisterNamespaced(prefix, shortName string, m *Module) error {
	full := prefix + "." + shortName
	if err := r.Register(full, m); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.aliases[shortName]; !taken {
		r.aliases[shortName] = full
	}
	return nil
}

// Get resolves name against the full-name table first, then the short-name
// alias table.
func (r *Registry) Get(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byName[name]; ok {
		return m, nil
	}
	if full, ok := r.aliases[name]; ok {
		if m, ok := r.byName[full]; ok {
			return m, nil
		}
	}
	return nil, &ModuleError{Kind: NotFound, Message: "no module named " + name}
}

// Names returns every fully-qualified registered module name, sorted, for
// callers (e.g. the compilation cache's registry-hash fingerprint) that
// need a deterministic snapshot of the registry's contents.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Deregister removes name and, if it was the module an alias points to,
// the alias as well. Idempotent: deregistering an unknown name is a no-op.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
	for short, full := range r.aliases {
		if full == name {
			delete(r.aliases, short)
		}
	}
}
