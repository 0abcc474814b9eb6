package job

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/xraph/jobhost"
)

// Services resolves named services.
type Services interface {
	Get(name string) (any, error)
}

// Provider constructs a service. It may resolve other services from s.
type Provider func(s Services) (any, error)

type lifetime int

const (
	singleton lifetime = iota
	scoped
)

type registration struct {
	lifetime lifetime
	provide  Provider
}

// Container holds service registrations shared by all job invocations.
// Singletons are built once per container; scoped services are built once
// per Scope and closed with it.
type Container struct {
	mu        sync.Mutex
	regs      map[string]registration
	instances map[string]any
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		regs:      make(map[string]registration),
		instances: make(map[string]any),
	}
}

// Singleton registers a provider whose value is shared by every scope.
func (c *Container) Singleton(name string, p Provider) {
	c.register(name, registration{lifetime: singleton, provide: p})
}

// Scoped registers a provider whose value is created once per scope.
// Values implementing io.Closer are closed when the scope closes.
func (c *Container) Scoped(name string, p Provider) {
	c.register(name, registration{lifetime: scoped, provide: p})
}

// Value registers an existing value as a singleton.
func (c *Container) Value(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[name] = registration{lifetime: singleton}
	c.instances[name] = v
}

func (c *Container) register(name string, r registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[name] = r
	delete(c.instances, name)
}

// Get resolves a singleton. Scoped services require a Scope.
func (c *Container) Get(name string) (any, error) {
	return c.resolve(name, nil)
}

// NewScope returns a resolver for one job invocation.
func (c *Container) NewScope() *Scope {
	return &Scope{container: c, instances: make(map[string]any)}
}

func (c *Container) resolve(name string, s *Scope) (any, error) {
	c.mu.Lock()
	reg, ok := c.regs[name]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", jobhost.ErrServiceNotFound, name)
	}
	if reg.lifetime == singleton {
		if v, ok := c.instances[name]; ok {
			c.mu.Unlock()
			return v, nil
		}
	}
	c.mu.Unlock()

	if reg.lifetime == scoped {
		if s == nil {
			return nil, fmt.Errorf("job: service %q is scoped and needs a scope", name)
		}
		return s.resolveScoped(name, reg.provide)
	}

	// Providers run without the lock held so they can resolve their own
	// dependencies. A concurrent first resolution keeps the earlier value.
	v, err := reg.provide(c)
	if err != nil {
		return nil, fmt.Errorf("job: provide %q: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.instances[name]; ok {
		return existing, nil
	}
	c.instances[name] = v
	return v, nil
}

// Scope resolves services for a single job invocation.
type Scope struct {
	container *Container

	mu        sync.Mutex
	instances map[string]any
	closers   []io.Closer
	closed    bool
}

// Get resolves name, building scoped services at most once per scope.
func (s *Scope) Get(name string) (any, error) {
	return s.container.resolve(name, s)
}

func (s *Scope) resolveScoped(name string, p Provider) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("job: scope closed")
	}
	if v, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := p(s)
	if err != nil {
		return nil, fmt.Errorf("job: provide %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[name]; ok {
		if c, ok := v.(io.Closer); ok {
			_ = c.Close()
		}
		return existing, nil
	}
	s.instances[name] = v
	if c, ok := v.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	return v, nil
}

// Close closes scoped services in reverse creation order. It is safe to
// call more than once.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve fetches name from s and asserts it to T.
func Resolve[T any](s Services, name string) (T, error) {
	var zero T
	if s == nil {
		return zero, fmt.Errorf("%w: %q", jobhost.ErrServiceNotFound, name)
	}
	v, err := s.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("job: service %q is %T, not %T", name, v, zero)
	}
	return t, nil
}
