package audithook

// Audit event actions. Each constant becomes the Action field of an event.
const (
	ActionTickCompleted = "tick.completed"
	ActionTickFailed    = "tick.failed"
	ActionTickSkipped   = "tick.skipped"
	ActionJobCompleted  = "job.completed"
	ActionJobFailed     = "job.failed"
	ActionLeaseAcquired = "lease.acquired"
	ActionLeaseLost     = "lease.lost"
)

// Audit event categories group related actions.
const (
	CategoryTick  = "jobhost.tick"
	CategoryJob   = "jobhost.job"
	CategoryLease = "jobhost.lease"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceDomain = "domain"
	ResourceJob    = "job"
	ResourceLease  = "lease"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionTickCompleted,
		ActionTickFailed,
		ActionTickSkipped,
		ActionJobCompleted,
		ActionJobFailed,
		ActionLeaseAcquired,
		ActionLeaseLost,
	}
}
