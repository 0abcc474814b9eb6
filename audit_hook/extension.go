package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobhost/ext"
	"github.com/xraph/jobhost/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.TickCompleted = (*Extension)(nil)
	_ ext.TickSkipped   = (*Extension)(nil)
	_ ext.JobCompleted  = (*Extension)(nil)
	_ ext.LeaseAcquired = (*Extension)(nil)
	_ ext.LeaseLost     = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes every event as one structured log line.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Extension bridges jobhost lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Tick hooks ──────────────────────────────────────

// OnTickCompleted implements ext.TickCompleted. A tick whose aggregate is
// Failure is recorded as tick.failed.
func (e *Extension) OnTickCompleted(ctx context.Context, domain string, status job.Status, elapsed time.Duration) error {
	action, severity, outcome := ActionTickCompleted, severityFor(status), outcomeFor(status)
	if status == job.StatusFailure {
		action = ActionTickFailed
	}
	return e.record(ctx, action, severity, outcome,
		ResourceDomain, domain, CategoryTick, nil,
		"status", status.String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTickSkipped implements ext.TickSkipped.
func (e *Extension) OnTickSkipped(ctx context.Context, domain, reason string) error {
	return e.record(ctx, ActionTickSkipped, SeverityWarning, OutcomeSkipped,
		ResourceDomain, domain, CategoryTick, nil,
		"reason", reason,
	)
}

// ── Job hooks ───────────────────────────────────────

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, domain string, r job.DependencyResult, elapsed time.Duration) error {
	action := ActionJobCompleted
	if r.Result.Status == job.StatusFailure {
		action = ActionJobFailed
	}
	return e.record(ctx, action, severityFor(r.Result.Status), outcomeFor(r.Result.Status),
		ResourceJob, domain+"/"+r.Descriptor.Name, CategoryJob, r.Result.Err,
		"domain", domain,
		"job_name", r.Descriptor.Name,
		"job_type", r.Descriptor.Type,
		"status", r.Result.Status.String(),
		"message", r.Result.Message,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Lease hooks ─────────────────────────────────────

// OnLeaseAcquired implements ext.LeaseAcquired.
func (e *Extension) OnLeaseAcquired(ctx context.Context, domain, leaseName string) error {
	return e.record(ctx, ActionLeaseAcquired, SeverityInfo, OutcomeSuccess,
		ResourceLease, leaseName, CategoryLease, nil,
		"domain", domain,
	)
}

// OnLeaseLost implements ext.LeaseLost.
func (e *Extension) OnLeaseLost(ctx context.Context, domain, leaseName string, err error) error {
	return e.record(ctx, ActionLeaseLost, SeverityCritical, OutcomeFailure,
		ResourceLease, leaseName, CategoryLease, err,
		"domain", domain,
	)
}

// ── Internal helpers ────────────────────────────────

func severityFor(s job.Status) string {
	switch s {
	case job.StatusSuccess:
		return SeverityInfo
	case job.StatusFailure:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

func outcomeFor(s job.Status) string {
	if s == job.StatusSuccess {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
