package job

import (
	"fmt"
	"time"

	"github.com/xraph/jobhost"
)

// Descriptor names a job within a domain and declares how it is scheduled.
type Descriptor struct {
	// Name is unique within the domain.
	Name string `json:"name" yaml:"name"`

	// Type selects the factory in the Registry used to build the job.
	Type string `json:"type" yaml:"type"`

	// DependsOn lists the names of jobs that must finish first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`

	// RunAlways makes the job run even when a dependency did not succeed.
	RunAlways bool `json:"run_always,omitempty" yaml:"run_always"`

	// Timeout bounds the job body when non-zero.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// Params is free-form configuration read by the job.
	Params map[string]string `json:"params,omitempty" yaml:"params"`
}

// Param returns the named parameter, or def when it is unset.
func (d Descriptor) Param(name, def string) string {
	if v, ok := d.Params[name]; ok && v != "" {
		return v
	}
	return def
}

// Options configures one domain: its jobs, cadence and gates.
type Options struct {
	// Domain is the unique name of the domain.
	Domain string `json:"domain" yaml:"domain"`

	// Interval is the pause between the end of one tick and the next.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Schedule is an optional cron expression. When set it replaces
	// Interval for computing the next tick.
	Schedule string `json:"schedule,omitempty" yaml:"schedule"`

	// Lease, when set, is the name of the lease a tick must hold.
	Lease string `json:"lease,omitempty" yaml:"lease"`

	// FeatureFlag, when set, must be enabled for a tick to run.
	FeatureFlag string `json:"feature_flag,omitempty" yaml:"feature_flag"`

	// Jobs is the domain's job set.
	Jobs []Descriptor `json:"jobs" yaml:"jobs"`
}

// Validate checks the fields of o that do not depend on graph structure.
func (o Options) Validate() error {
	if o.Domain == "" {
		return fmt.Errorf("%w: domain name is required", jobhost.ErrInvalidDomain)
	}
	if len(o.Jobs) == 0 {
		return fmt.Errorf("%w: %s", jobhost.ErrNoJobs, o.Domain)
	}
	if o.Interval <= 0 && o.Schedule == "" {
		return fmt.Errorf("%w: %s", jobhost.ErrNoSchedule, o.Domain)
	}
	for i, d := range o.Jobs {
		if d.Name == "" {
			return fmt.Errorf("%w: %s: job %d has no name", jobhost.ErrInvalidDomain, o.Domain, i)
		}
		if d.Type == "" {
			return fmt.Errorf("%w: %s: job %q has no type", jobhost.ErrInvalidDomain, o.Domain, d.Name)
		}
		if d.Timeout < 0 {
			return fmt.Errorf("%w: %s: job %q has negative timeout", jobhost.ErrInvalidDomain, o.Domain, d.Name)
		}
	}
	return nil
}
