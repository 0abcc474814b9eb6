package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobhost"
	audithook "github.com/xraph/jobhost/audit_hook"
	"github.com/xraph/jobhost/config"
	"github.com/xraph/jobhost/dispatcher"
	"github.com/xraph/jobhost/feature"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/job/builtin"
	"github.com/xraph/jobhost/lease"
)

// host is a dispatcher with every domain of the domains file registered.
type host struct {
	dispatcher *dispatcher.Dispatcher
	backends   *backends
	domains    []job.Options
}

// newRegistry returns the job types available to domain files.
func newRegistry() *job.Registry {
	reg := job.NewRegistry()
	builtin.Register(reg)
	return reg
}

// newHost opens the backends and registers every domain. Any registration
// error aborts startup.
func newHost(ctx context.Context, cfg config.Host, logger *slog.Logger, tp trace.TracerProvider) (*host, error) {
	domains, err := config.LoadDomains(cfg.DomainsFile)
	if err != nil {
		return nil, err
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	mgr := lease.NewManager(b.store,
		lease.WithDuration(cfg.LeaseDuration),
		lease.WithLogger(logger),
	)
	d, err := newDispatcher(cfg, logger, tp, b.flags, mgr)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	for _, o := range domains {
		if err := d.Register(o); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("register domain %q: %w", o.Domain, err)
		}
	}
	return &host{dispatcher: d, backends: b, domains: domains}, nil
}

func newDispatcher(cfg config.Host, logger *slog.Logger, tp trace.TracerProvider, flags feature.Flags, l lease.Lease) (*dispatcher.Dispatcher, error) {
	dc := jobhost.DefaultConfig()
	dc.ShutdownTimeout = cfg.ShutdownTimeout
	opts := []dispatcher.Option{
		dispatcher.WithConfig(dc),
		dispatcher.WithLogger(logger),
		dispatcher.WithTracerProvider(tp),
		dispatcher.WithRegistry(newRegistry()),
		dispatcher.WithFlags(flags),
		dispatcher.WithLease(l),
	}
	if cfg.AuditLog {
		opts = append(opts, dispatcher.WithExtension(
			audithook.New(audithook.LogRecorder(logger.With(slog.String("component", "audit")))),
		))
	}
	return dispatcher.New(opts...)
}

func (h *host) Close() error { return h.backends.Close() }
