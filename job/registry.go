package job

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/jobhost"
)

// Factory builds a job for one invocation. It receives the invocation's
// service scope so the job can resolve its collaborators.
type Factory func(s Services) (Job, error)

// Registry maps descriptor types to factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register associates typ with f, replacing any earlier factory.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// RegisterJob registers a stateless job value that is shared by every
// invocation.
func (r *Registry) RegisterJob(typ string, j Job) {
	r.Register(typ, func(Services) (Job, error) { return j, nil })
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// Resolve builds the job registered for typ.
func (r *Registry) Resolve(typ string, s Services) (Job, error) {
	r.mu.RLock()
	f, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", jobhost.ErrUnknownJobType, typ)
	}

	j, err := f(s)
	if err != nil {
		return nil, fmt.Errorf("job: build %q: %w", typ, err)
	}
	if j == nil {
		return nil, fmt.Errorf("job: factory for %q returned nil", typ)
	}
	return j, nil
}

// Types returns all registered types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
