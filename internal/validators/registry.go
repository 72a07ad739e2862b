// Package validators resolves validator names to implementations and runs a
// parameter's validators against a typed value before it is written.
//
// Names resolve in three tiers: the built-in validators, implementations the
// host registered with Register or RegisterFunc, and operator aliases read
// from configuration that point at registered implementations.
package validators

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-intelligence/params/pkg/types"
)

// Validator checks a typed value. A non-nil error rejects the value; its
// message is reported to the caller.
type Validator interface {
	Validate(value any) error
}

// Func adapts a plain function, usually a validator that takes no params.
type Func func(value any) error

// Validate calls f(value).
func (f Func) Validate(value any) error {
	return f(value)
}

// Factory builds a Validator from the params stored with it. Params come
// from JSON, so numbers arrive as float64.
type Factory func(params map[string]any) (Validator, error)

// AliasSource returns the operator-configured mapping of validator names to
// registered implementation names.
type AliasSource func() (map[string]string, error)

// Registry resolves validator names. The alias mapping is read from its
// source once and cached until Invalidate is called.
type Registry struct {
	mu      sync.RWMutex
	impls   map[string]Factory
	aliases map[string]string // nil until loaded
	source  AliasSource
}

// NewRegistry creates a registry over the built-in validators. source may be
// nil when no aliases are configured.
func NewRegistry(source AliasSource) *Registry {
	return &Registry{
		impls:  make(map[string]Factory),
		source: source,
	}
}

// Register makes a custom implementation available under name.
// Returns an error if name is empty or shadows a built-in.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("registering validator: name and factory are required")
	}
	if _, ok := builtins[name]; ok {
		return fmt.Errorf("registering validator %q: name is built in", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[name] = f
	return nil
}

// RegisterFunc registers a validator that ignores its params.
func (r *Registry) RegisterFunc(name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("registering validator %q: nil func", name)
	}
	return r.Register(name, func(map[string]any) (Validator, error) {
		return fn, nil
	})
}

// Invalidate drops the cached alias mapping. The next lookup reads the
// source again.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases = nil
}

// Resolve returns the factory registered under name.
// Returns *types.UnknownValidatorError if no tier knows the name, or the
// source's error if the alias mapping cannot be loaded.
func (r *Registry) Resolve(name string) (Factory, error) {
	if f, ok := builtins[name]; ok {
		return f, nil
	}

	r.mu.RLock()
	f, ok := r.impls[name]
	loaded := r.aliases != nil
	target, aliased := r.aliases[name]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	if !loaded {
		aliases, err := r.loadAliases()
		if err != nil {
			return nil, err
		}
		target, aliased = aliases[name]
	}
	if !aliased {
		return nil, &types.UnknownValidatorError{Name: name}
	}

	r.mu.RLock()
	f, ok = r.impls[target]
	r.mu.RUnlock()
	if !ok {
		if bf, isBuiltin := builtins[target]; isBuiltin {
			return bf, nil
		}
		return nil, &types.UnknownValidatorError{Name: name}
	}
	return f, nil
}

// loadAliases fills the alias cache once. Concurrent callers wait for the
// first reader.
func (r *Registry) loadAliases() (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aliases != nil {
		return r.aliases, nil
	}
	aliases := map[string]string{}
	if r.source != nil {
		m, err := r.source()
		if err != nil {
			return nil, fmt.Errorf("loading validator aliases: %w", err)
		}
		for k, v := range m {
			aliases[k] = v
		}
	}
	r.aliases = aliases
	return aliases, nil
}

// Build resolves v.Type and instantiates it with v.Params.
func (r *Registry) Build(v types.Validator) (Validator, error) {
	f, err := r.Resolve(v.Type)
	if err != nil {
		return nil, err
	}
	val, err := f(v.Params)
	if err != nil {
		return nil, fmt.Errorf("building validator %s: %w", v.Type, err)
	}
	return val, nil
}

// Names lists every resolvable validator name, built-ins first, each group
// sorted.
func (r *Registry) Names() ([]string, error) {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)

	aliases, err := r.loadAliases()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	custom := make([]string, 0, len(r.impls)+len(aliases))
	for n := range r.impls {
		custom = append(custom, n)
	}
	for n := range aliases {
		if _, dup := r.impls[n]; !dup {
			custom = append(custom, n)
		}
	}
	r.mu.RUnlock()
	sort.Strings(custom)

	return append(names, custom...), nil
}

// IsBuiltin reports whether name is one of the built-in validators.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}
