package rendergraph

import (
	"fmt"
	"sync"
)

// NodeFactory creates the logic for a new instance of a node type.
type NodeFactory func() NodeLogic

// nodeType pairs a validated schema with its instance factory.
type nodeType struct {
	schema  *Schema
	factory NodeFactory
}

// Registry maps node type names to their schema and factory. A Registry
// is safe for concurrent use, though registration is intended as a
// one-time, startup activity that never races with graph construction.
//
// Graphs take an explicit Registry via Options so tests can run against
// an isolated one; the package-level functions operate on DefaultRegistry.
type Registry struct {
	mu    sync.RWMutex
	types map[string]nodeType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]nodeType)}
}

// DefaultRegistry is the registry used by graphs whose Options leave
// Registry nil. Node packages register their types here from init().
var DefaultRegistry = NewRegistry()

// Register validates the schema and records it with its factory.
// A malformed schema fails with ErrSchemaViolation here, at authoring
// time; it can never reach a live graph. Registering an already
// registered type name fails with ErrDuplicateType.
func (r *Registry) Register(schema *Schema, factory NodeFactory) error {
	if factory == nil {
		return fmt.Errorf("%w: type %q: nil factory", ErrSchemaViolation, schema.TypeName)
	}
	if err := schema.validate(); err != nil {
		return err
	}

	// Freeze a positional copy so later mutation of the caller's
	// slices cannot skew a registered schema.
	frozen := &Schema{
		TypeName: schema.TypeName,
		Inputs:   sortedByIndex(schema.Inputs),
		Outputs:  sortedByIndex(schema.Outputs),
	}
	if len(schema.Params) > 0 {
		frozen.Params = make(map[string]any, len(schema.Params))
		for k, v := range schema.Params {
			frozen.Params[k] = v
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[frozen.TypeName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateType, frozen.TypeName)
	}
	r.types[frozen.TypeName] = nodeType{schema: frozen, factory: factory}
	return nil
}

// MustRegister is Register that panics on error, for init()-time type
// registration.
func (r *Registry) MustRegister(schema *Schema, factory NodeFactory) {
	if err := r.Register(schema, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.types[name]
	if !ok {
		return nil, false
	}
	return nt.schema, true
}

// Unregister removes a type from the registry. This is useful for tests.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, name)
}

// Types returns the registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

func (r *Registry) lookupType(name string) (nodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.types[name]
	return nt, ok
}

// RegisterType registers a node type in DefaultRegistry.
func RegisterType(schema *Schema, factory NodeFactory) error {
	return DefaultRegistry.Register(schema, factory)
}

// MustRegisterType registers a node type in DefaultRegistry, panicking on
// error. This is typically called from init() functions in node packages.
func MustRegisterType(schema *Schema, factory NodeFactory) {
	DefaultRegistry.MustRegister(schema, factory)
}

// LookupType returns the schema registered under name in DefaultRegistry.
func LookupType(name string) (*Schema, bool) {
	return DefaultRegistry.Lookup(name)
}

// RegisteredTypes returns the type names in DefaultRegistry.
func RegisteredTypes() []string {
	return DefaultRegistry.Types()
}
