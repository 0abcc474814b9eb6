package dispatcher

import (
	"sync"
	"time"

	"github.com/xraph/jobhost/graph"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/schedule"
)

// DomainStatus is a point-in-time view of one domain.
type DomainStatus struct {
	Domain      string        `json:"domain"`
	Interval    time.Duration `json:"interval,omitempty"`
	Schedule    string        `json:"schedule,omitempty"`
	Lease       string        `json:"lease,omitempty"`
	FeatureFlag string        `json:"feature_flag,omitempty"`
	Jobs        []string      `json:"jobs"`

	Ticks      int64      `json:"ticks"`
	Skips      int64      `json:"skips"`
	LastStatus job.Status `json:"last_status"`
	LastRun    time.Time  `json:"last_run,omitzero"`
	LastSkip   string     `json:"last_skip,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	NextRun    time.Time  `json:"next_run,omitzero"`
	Running    bool       `json:"running"`
	LeaseHeld  bool       `json:"lease_held"`
}

type domain struct {
	opts     job.Options
	graph    *graph.Graph
	schedule schedule.Schedule

	// tickMu keeps ticks of this domain from overlapping.
	tickMu sync.Mutex

	mu         sync.Mutex
	ticks      int64
	skips      int64
	lastStatus job.Status
	lastRun    time.Time
	lastSkip   string
	lastError  string
	nextRun    time.Time
	running    bool
	leaseHeld  bool
}

func newDomain(opts job.Options, g *graph.Graph, s schedule.Schedule) *domain {
	return &domain{opts: opts, graph: g, schedule: s}
}

func (d *domain) begin() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
}

func (d *domain) setLeaseHeld(held bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaseHeld = held
}

func (d *domain) setNext(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextRun = t
}

// finish records the outcome of a tick. skip is non-empty for a tick
// stopped at a gate.
func (d *domain) finish(status job.Status, at time.Time, skip string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.leaseHeld = false
	d.lastRun = at
	d.nextRun = d.schedule.Next(at)
	if skip != "" {
		d.skips++
		d.lastSkip = skip
		return
	}
	d.ticks++
	d.lastStatus = status
	d.lastError = ""
	if err != nil {
		d.lastError = err.Error()
	}
}

func (d *domain) snapshot() DomainStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DomainStatus{
		Domain:      d.opts.Domain,
		Interval:    d.opts.Interval,
		Schedule:    d.opts.Schedule,
		Lease:       d.opts.Lease,
		FeatureFlag: d.opts.FeatureFlag,
		Jobs:        d.graph.Order(),
		Ticks:       d.ticks,
		Skips:       d.skips,
		LastStatus:  d.lastStatus,
		LastRun:     d.lastRun,
		LastSkip:    d.lastSkip,
		LastError:   d.lastError,
		NextRun:     d.nextRun,
		Running:     d.running,
		LeaseHeld:   d.leaseHeld,
	}
}
