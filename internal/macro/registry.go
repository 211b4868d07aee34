package macro

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.starlark.net/starlark"
)

// ReservedNamespaces are names taken by expression builtins.
var ReservedNamespaces = []string{"this", "join", "upper", "lower", "count", "exists", "config"}

// Registry holds loaded macro modules by namespace.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*LoadedModule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*LoadedModule)}
}

// Register adds a module. Reserved and duplicate namespaces are rejected.
func (r *Registry) Register(m *LoadedModule) error {
	if slices.Contains(ReservedNamespaces, m.Namespace) {
		return &RegistryError{Namespace: m.Namespace, Message: "namespace is reserved for a builtin"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.modules[m.Namespace]; ok {
		return &RegistryError{
			Namespace: m.Namespace,
			Message:   fmt.Sprintf("already defined in %s", existing.Path),
		}
	}
	r.modules[m.Namespace] = m
	return nil
}

// RegisterAll registers modules in order and stops at the first error.
func (r *Registry) RegisterAll(modules []*LoadedModule) error {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the module for namespace, or nil.
func (r *Registry) Get(namespace string) *LoadedModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[namespace]
}

// Has reports whether namespace is registered.
func (r *Registry) Has(namespace string) bool {
	return r.Get(namespace) != nil
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.modules))
}

// ToStarlarkDict exposes every namespace as a module value for use as
// predeclared globals.
func (r *Registry) ToStarlarkDict() starlark.StringDict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dict := make(starlark.StringDict, len(r.modules))
	for ns, m := range r.modules {
		dict[ns] = &starlarkModule{name: ns, exports: m.Exports}
	}
	return dict
}

// LoadAndRegister loads dir and registers every module found.
func LoadAndRegister(dir string) (*Registry, error) {
	modules, err := NewLoader(dir).Load()
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	if err := r.RegisterAll(modules); err != nil {
		return nil, err
	}
	return r, nil
}

// RegistryError reports a namespace that cannot be registered.
type RegistryError struct {
	Namespace string
	Message   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("macro namespace %q: %s", e.Namespace, e.Message)
}

// starlarkModule exposes a namespace's exports as attributes.
type starlarkModule struct {
	name    string
	exports starlark.StringDict
}

var _ starlark.HasAttrs = (*starlarkModule)(nil)

func (m *starlarkModule) String() string        { return fmt.Sprintf("<module %s>", m.name) }
func (m *starlarkModule) Type() string          { return "module" }
func (m *starlarkModule) Freeze()               { m.exports.Freeze() }
func (m *starlarkModule) Truth() starlark.Bool  { return starlark.True }
func (m *starlarkModule) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: module") }

func (m *starlarkModule) Attr(name string) (starlark.Value, error) {
	if v, ok := m.exports[name]; ok {
		return v, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("module %s has no attribute %q", m.name, name))
}

func (m *starlarkModule) AttrNames() []string {
	return slices.Sorted(maps.Keys(m.exports))
}
