package dispatcher

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/ext"
	"github.com/xraph/jobhost/feature"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/lease"
	mw "github.com/xraph/jobhost/middleware"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithConfig sets the dispatcher configuration.
func WithConfig(cfg jobhost.Config) Option {
	return func(d *Dispatcher) error {
		d.config = cfg
		return nil
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if l == nil {
			return errors.New("dispatcher: nil logger")
		}
		d.logger = l
		return nil
	}
}

// WithFlags sets the feature flag source consulted by domains that name a
// feature flag.
func WithFlags(f feature.Flags) Option {
	return func(d *Dispatcher) error {
		d.flags = f
		return nil
	}
}

// WithLease sets the lease service used by domains that name a lease. It
// is also handed to jobs through job.Context.
func WithLease(l lease.Lease) Option {
	return func(d *Dispatcher) error {
		d.lease = l
		return nil
	}
}

// WithRegistry sets the job type registry. The default is empty.
func WithRegistry(r *job.Registry) Option {
	return func(d *Dispatcher) error {
		if r == nil {
			return errors.New("dispatcher: nil registry")
		}
		d.registry = r
		return nil
	}
}

// WithContainer sets the service container jobs are resolved from.
func WithContainer(c *job.Container) Option {
	return func(d *Dispatcher) error {
		if c == nil {
			return errors.New("dispatcher: nil container")
		}
		d.services = c
		return nil
	}
}

// WithExtension registers an extension with the dispatcher.
func WithExtension(e ext.Extension) Option {
	return func(d *Dispatcher) error {
		d.pendingExt = append(d.pendingExt, e)
		return nil
	}
}

// WithExtensions registers several extensions at once.
func WithExtensions(es ...ext.Extension) Option {
	return func(d *Dispatcher) error {
		d.pendingExt = append(d.pendingExt, es...)
		return nil
	}
}

// WithMiddleware appends middleware around every job body. It runs inside
// the default recover, tracing, metrics, logging and timeout stack.
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(d *Dispatcher) error {
		d.mws = append(d.mws, mws...)
		return nil
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for tick, job and
// job body spans. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) error {
		d.tracerProvider = tp
		return nil
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) error {
		d.meterProvider = mp
		return nil
	}
}
