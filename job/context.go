package job

import (
	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
)

// Context carries everything a job needs for one invocation.
type Context struct {
	// Options is the domain configuration the job belongs to.
	Options Options

	// Descriptor is the job's own descriptor.
	Descriptor Descriptor

	// DependsOn holds one result per declared dependency, in DependsOn order.
	DependsOn []DependencyResult

	// Lease lets the job take leases of its own.
	Lease lease.Lease

	// Held is the domain lease held for this tick, or nil when the domain
	// has none.
	Held *lease.Result

	// Services resolves services scoped to this invocation.
	Services Services

	// TickID identifies the tick this invocation belongs to.
	TickID id.ID
}

// Dependency returns the result of the named dependency.
func (c *Context) Dependency(name string) (DependencyResult, bool) {
	for _, d := range c.DependsOn {
		if d.Descriptor.Name == name {
			return d, true
		}
	}
	return DependencyResult{}, false
}
