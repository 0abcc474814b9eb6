package lease

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "github.com/xraph/jobhost/lease"

type outcome string

const (
	outcomeSuccess outcome = "success"
	outcomeFailed  outcome = "failed"
	outcomePresent outcome = "present"
	outcomeLost    outcome = "lease_lost"
)

// ops lists the outcomes recorded per operation. Each pair becomes a
// counter named "lease.<op>.<outcome>".
var ops = map[string][]outcome{
	"acquire": {outcomeSuccess, outcomeFailed, outcomePresent},
	"refresh": {outcomeSuccess, outcomeFailed, outcomeLost},
	"release": {outcomeSuccess, outcomeFailed, outcomeLost},
	"update":  {outcomeSuccess, outcomeFailed, outcomeLost},
	"get":     {outcomeSuccess, outcomeFailed},
}

type telemetry struct {
	logger   *slog.Logger
	counters map[string]metric.Int64Counter
	latency  map[string]metric.Float64Histogram
	duration metric.Float64Histogram
}

func newTelemetry(meter metric.Meter, logger *slog.Logger) *telemetry {
	t := &telemetry{
		logger:   logger,
		counters: make(map[string]metric.Int64Counter),
		latency:  make(map[string]metric.Float64Histogram),
	}
	// Instrument errors fall back to noop instruments per the OTel API.
	for op, outcomes := range ops {
		for _, o := range outcomes {
			name := "lease." + op + "." + string(o)
			c, _ := meter.Int64Counter(name, metric.WithUnit("{call}"))
			t.counters[name] = c
		}
		h, _ := meter.Float64Histogram("lease."+op+".latency",
			metric.WithDescription("Latency of lease "+op+" calls"),
			metric.WithUnit("ms"),
		)
		t.latency[op] = h
	}
	t.duration, _ = meter.Float64Histogram("lease.duration",
		metric.WithDescription("Time a lease was held, from acquire to release"),
		metric.WithUnit("s"),
	)
	return t
}

func (t *telemetry) record(ctx context.Context, op, name string, o outcome, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("lease", name),
		attribute.String("status", string(o)),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error_code", errorCode(err)))
	}
	set := metric.WithAttributes(attrs...)

	if c, ok := t.counters["lease."+op+"."+string(o)]; ok {
		c.Add(ctx, 1, set)
	}
	if h, ok := t.latency[op]; ok {
		h.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), set)
	}
}

func (t *telemetry) event(ctx context.Context, msg, name string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("lease", name)}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	span.AddEvent(msg, trace.WithAttributes(attrs...))
}

func (t *telemetry) acquire(ctx context.Context, name string, o outcome, start time.Time, err error) {
	t.record(ctx, "acquire", name, o, start, err)
	switch o {
	case outcomeSuccess:
		t.event(ctx, "lease acquired", name, nil)
		t.logger.Info("lease acquired", slog.String("lease", name))
	case outcomePresent:
		t.event(ctx, "lease already present", name, nil)
		t.logger.Debug("lease already present", slog.String("lease", name))
	default:
		t.event(ctx, "lease acquire failed", name, err)
		t.logger.Error("lease acquire failed", slog.String("lease", name), slog.String("error", err.Error()))
	}
}

func (t *telemetry) refresh(ctx context.Context, name string, o outcome, start time.Time, err error) {
	t.record(ctx, "refresh", name, o, start, err)
	switch o {
	case outcomeSuccess:
		t.logger.Debug("lease renewed", slog.String("lease", name))
	case outcomeLost:
		t.event(ctx, "lease lost", name, err)
		t.logger.Warn("lease lost during renewal", slog.String("lease", name), slog.String("error", err.Error()))
	default:
		t.event(ctx, "lease renewal failed", name, err)
		t.logger.Error("lease renewal failed", slog.String("lease", name), slog.String("error", err.Error()))
	}
}

func (t *telemetry) release(ctx context.Context, name string, o outcome, start, acquiredAt time.Time, err error) {
	t.record(ctx, "release", name, o, start, err)
	t.duration.Record(ctx, time.Since(acquiredAt).Seconds(), metric.WithAttributes(attribute.String("lease", name)))
	switch o {
	case outcomeSuccess:
		t.event(ctx, "lease released", name, nil)
		t.logger.Info("lease released", slog.String("lease", name))
	case outcomeLost:
		t.event(ctx, "lease already gone at release", name, err)
		t.logger.Warn("lease already gone at release", slog.String("lease", name), slog.String("error", err.Error()))
	default:
		t.event(ctx, "lease release failed", name, err)
		t.logger.Error("lease release failed", slog.String("lease", name), slog.String("error", err.Error()))
	}
}

func (t *telemetry) update(ctx context.Context, name string, o outcome, start time.Time, err error) {
	t.record(ctx, "update", name, o, start, err)
	switch o {
	case outcomeSuccess:
		t.logger.Debug("lease payload updated", slog.String("lease", name))
	case outcomeLost:
		t.event(ctx, "lease lost on update", name, err)
		t.logger.Warn("lease lost on update", slog.String("lease", name), slog.String("error", err.Error()))
	default:
		t.event(ctx, "lease update failed", name, err)
		t.logger.Error("lease update failed", slog.String("lease", name), slog.String("error", err.Error()))
	}
}

func (t *telemetry) get(ctx context.Context, name string, o outcome, start time.Time, err error) {
	t.record(ctx, "get", name, o, start, err)
	if err != nil {
		t.logger.Error("lease payload read failed", slog.String("lease", name), slog.String("error", err.Error()))
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyHeld):
		return "lease_already_present"
	case errors.Is(err, ErrLost):
		return "lease_lost"
	case errors.Is(err, ErrNotPresent):
		return "lease_not_present"
	case errors.Is(err, ErrTokenMissing):
		return "lease_id_missing"
	case errors.Is(err, ErrObjectNotFound):
		return "object_not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "unknown"
	}
}
