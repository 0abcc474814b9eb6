package audithook_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	ah "github.com/xraph/jobhost/audit_hook"
	"github.com/xraph/jobhost/ext"
	"github.com/xraph/jobhost/job"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

func depResult(status job.Status, err error) job.DependencyResult {
	return job.DependencyResult{
		Descriptor: job.Descriptor{Name: "post", Type: "noop"},
		Result:     job.Result{Status: status, Message: "done", Err: err},
	}
}

func expect(t *testing.T, evt *ah.AuditEvent, action, resource, resourceID, severity, outcome string) {
	t.Helper()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != action {
		t.Errorf("Action: want %q, got %q", action, evt.Action)
	}
	if evt.Resource != resource {
		t.Errorf("Resource: want %q, got %q", resource, evt.Resource)
	}
	if evt.ResourceID != resourceID {
		t.Errorf("ResourceID: want %q, got %q", resourceID, evt.ResourceID)
	}
	if evt.Severity != severity {
		t.Errorf("Severity: want %q, got %q", severity, evt.Severity)
	}
	if evt.Outcome != outcome {
		t.Errorf("Outcome: want %q, got %q", outcome, evt.Outcome)
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

// ── Tick tests ───────────────────────────────────────

func TestExtension_TickCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTickCompleted(context.Background(), "billing", job.StatusSuccess, 1500*time.Millisecond); err != nil {
		t.Fatalf("OnTickCompleted: %v", err)
	}
	evt := rec.last()
	expect(t, evt, ah.ActionTickCompleted, ah.ResourceDomain, "billing", ah.SeverityInfo, ah.OutcomeSuccess)
	if evt.Category != ah.CategoryTick {
		t.Errorf("Category: want %q, got %q", ah.CategoryTick, evt.Category)
	}
	if evt.Metadata["elapsed_ms"] != int64(1500) {
		t.Errorf("elapsed_ms: got %v", evt.Metadata["elapsed_ms"])
	}
}

func TestExtension_TickFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTickCompleted(context.Background(), "billing", job.StatusFailure, time.Second); err != nil {
		t.Fatalf("OnTickCompleted: %v", err)
	}
	expect(t, rec.last(), ah.ActionTickFailed, ah.ResourceDomain, "billing", ah.SeverityCritical, ah.OutcomeFailure)
}

func TestExtension_TickCancelledIsWarning(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTickCompleted(context.Background(), "billing", job.StatusCancelled, time.Second); err != nil {
		t.Fatalf("OnTickCompleted: %v", err)
	}
	expect(t, rec.last(), ah.ActionTickCompleted, ah.ResourceDomain, "billing", ah.SeverityWarning, ah.OutcomeFailure)
}

func TestExtension_TickSkipped(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTickSkipped(context.Background(), "billing", ext.ReasonLeaseUnavailable); err != nil {
		t.Fatalf("OnTickSkipped: %v", err)
	}
	evt := rec.last()
	expect(t, evt, ah.ActionTickSkipped, ah.ResourceDomain, "billing", ah.SeverityWarning, ah.OutcomeSkipped)
	if evt.Metadata["reason"] != ext.ReasonLeaseUnavailable {
		t.Errorf("reason: got %v", evt.Metadata["reason"])
	}
}

// ── Job tests ────────────────────────────────────────

func TestExtension_JobCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnJobCompleted(context.Background(), "billing", depResult(job.StatusSuccess, nil), 50*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	evt := rec.last()
	expect(t, evt, ah.ActionJobCompleted, ah.ResourceJob, "billing/post", ah.SeverityInfo, ah.OutcomeSuccess)
	if evt.Metadata["job_type"] != "noop" || evt.Metadata["domain"] != "billing" {
		t.Errorf("metadata: got %v", evt.Metadata)
	}
}

func TestExtension_JobFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnJobCompleted(context.Background(), "billing", depResult(job.StatusFailure, errors.New("ledger locked")), time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	evt := rec.last()
	expect(t, evt, ah.ActionJobFailed, ah.ResourceJob, "billing/post", ah.SeverityCritical, ah.OutcomeFailure)
	if evt.Reason != "ledger locked" {
		t.Errorf("Reason: want %q, got %q", "ledger locked", evt.Reason)
	}
	if evt.Metadata["error"] != "ledger locked" {
		t.Errorf("error metadata: got %v", evt.Metadata["error"])
	}
}

// ── Lease tests ──────────────────────────────────────

func TestExtension_LeaseAcquired(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnLeaseAcquired(context.Background(), "billing", "billing-lease"); err != nil {
		t.Fatalf("OnLeaseAcquired: %v", err)
	}
	expect(t, rec.last(), ah.ActionLeaseAcquired, ah.ResourceLease, "billing-lease", ah.SeverityInfo, ah.OutcomeSuccess)
}

func TestExtension_LeaseLost(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnLeaseLost(context.Background(), "billing", "billing-lease", errors.New("lease: lost")); err != nil {
		t.Fatalf("OnLeaseLost: %v", err)
	}
	evt := rec.last()
	expect(t, evt, ah.ActionLeaseLost, ah.ResourceLease, "billing-lease", ah.SeverityCritical, ah.OutcomeFailure)
	if evt.Reason != "lease: lost" {
		t.Errorf("Reason: got %q", evt.Reason)
	}
}

// ── WithActions filter tests ─────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionTickFailed, ah.ActionLeaseLost))
	ctx := context.Background()

	// Successful ticks are not enabled.
	if err := e.OnTickCompleted(ctx, "billing", job.StatusSuccess, time.Second); err != nil {
		t.Fatalf("OnTickCompleted: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events, got %d", rec.count())
	}

	if err := e.OnTickCompleted(ctx, "billing", job.StatusFailure, time.Second); err != nil {
		t.Fatalf("OnTickCompleted: %v", err)
	}
	if err := e.OnLeaseLost(ctx, "billing", "billing", errors.New("gone")); err != nil {
		t.Fatalf("OnLeaseLost: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── Recorder tests ───────────────────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failing := ah.RecorderFunc(func(context.Context, *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failing, ah.WithLogger(slog.New(slog.DiscardHandler)))
	if err := e.OnTickSkipped(context.Background(), "billing", ext.ReasonFeatureDisabled); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := ah.New(ah.LogRecorder(logger))

	if err := e.OnLeaseLost(context.Background(), "billing", "billing-lease", errors.New("revoked")); err != nil {
		t.Fatalf("OnLeaseLost: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"level=ERROR", "msg=audit", "action=lease.lost", "resource_id=billing-lease", "reason=revoked", "domain=billing"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q does not contain %q", out, want)
		}
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(ah.New(rec))

	ctx := context.Background()
	reg.EmitTickCompleted(ctx, "billing", job.StatusSuccess, time.Second)
	reg.EmitTickCompleted(ctx, "billing", job.StatusFailure, time.Second)
	reg.EmitTickSkipped(ctx, "billing", ext.ReasonFeatureDisabled)
	reg.EmitJobCompleted(ctx, "billing", depResult(job.StatusSuccess, nil), time.Second)
	reg.EmitJobCompleted(ctx, "billing", depResult(job.StatusFailure, errors.New("x")), time.Second)
	reg.EmitLeaseAcquired(ctx, "billing", "billing")
	reg.EmitLeaseLost(ctx, "billing", "billing", errors.New("lost"))

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}
	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}
