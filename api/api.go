// Package api exposes the dispatcher over HTTP.
//
//	GET  /healthz
//	GET  /v1/domains
//	GET  /v1/domains/{domain}
//	POST /v1/domains/{domain}/ticks
//
// All responses are JSON.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/jobhost/dispatcher"
	"github.com/xraph/jobhost/job"
)

// Dispatcher is the part of *dispatcher.Dispatcher the API serves.
type Dispatcher interface {
	Status() []dispatcher.DomainStatus
	DomainStatus(name string) (dispatcher.DomainStatus, error)
	RunOnce(ctx context.Context, name string) (job.Status, error)
}

var _ Dispatcher = (*dispatcher.Dispatcher)(nil)

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithBaseContext sets the context manual ticks run under. Cancelling it
// cancels ticks still in flight; it normally lives as long as the server.
func WithBaseContext(ctx context.Context) Option {
	return func(a *API) { a.base = ctx }
}

// API wires the HTTP handlers to a dispatcher.
type API struct {
	d      Dispatcher
	logger *slog.Logger
	base   context.Context
}

// New creates an API for d.
func New(d Dispatcher, opts ...Option) *API {
	a := &API{d: d, logger: slog.Default(), base: context.Background()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handler returns a router with every route and the default middleware.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API routes on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthz)
	r.Route("/v1/domains", func(r chi.Router) {
		r.Get("/", a.listDomains)
		r.Get("/{domain}", a.getDomain)
		r.Post("/{domain}/ticks", a.triggerTick)
	})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
