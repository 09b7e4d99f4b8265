package layered

import (
	"reflect"
	"sync"
)

// layer is satisfied by *Config and by pointers to any struct embedding Config.
type layer[T any] interface {
	*T
	base() *Config
}

type instance interface {
	base() *Config
}

// Registry holds at most one live configuration per Go type.
type Registry struct {
	mu        sync.Mutex
	opts      []Option
	instances map[reflect.Type]instance
}

// NewRegistry creates an empty registry. The options are applied to every
// configuration the registry constructs.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:      opts,
		instances: make(map[reflect.Type]instance),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Instance, Reset
// and Clear.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Instance returns the singleton for T from the default registry, loading
// paths on first use. Later calls return the same value and ignore paths
// until Reset is called.
func Instance[T any, PT layer[T]](paths ...string) (PT, error) {
	return InstanceIn[T, PT](defaultRegistry, paths...)
}

// InstanceIn is Instance for an explicit registry.
func InstanceIn[T any, PT layer[T]](r *Registry, paths ...string) (PT, error) {
	key := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[key]; ok {
		return existing.(PT), nil
	}

	inst := PT(new(T))
	if err := inst.base().init(paths, r.opts); err != nil {
		return nil, err
	}
	r.instances[key] = inst
	return inst, nil
}

// Reset discards the singleton for T so that the next Instance call loads
// its files again.
func Reset[T any]() {
	ResetIn[T](defaultRegistry)
}

// ResetIn is Reset for an explicit registry.
func ResetIn[T any](r *Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, reflect.TypeFor[T]())
}

// Clear drops memoized lookups of the singleton for T, if one exists.
// The singleton itself is kept.
func Clear[T any]() {
	ClearIn[T](defaultRegistry)
}

// ClearIn is Clear for an explicit registry.
func ClearIn[T any](r *Registry) {
	r.mu.Lock()
	existing, ok := r.instances[reflect.TypeFor[T]()]
	r.mu.Unlock()
	if ok {
		existing.base().Clear()
	}
}
