package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/dispatcher"
	"github.com/xraph/jobhost/job"
)

// ListDomainsResponse is the body of GET /v1/domains.
type ListDomainsResponse struct {
	Domains []dispatcher.DomainStatus `json:"domains"`
}

// TickResponse is the body of POST /v1/domains/{domain}/ticks.
type TickResponse struct {
	Domain string     `json:"domain"`
	Status job.Status `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) listDomains(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, ListDomainsResponse{Domains: a.d.Status()})
}

func (a *API) getDomain(w http.ResponseWriter, r *http.Request) {
	st, err := a.d.DomainStatus(chi.URLParam(r, "domain"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, st)
}

// triggerTick runs one tick synchronously under the API's base context.
// The tick survives the client going away but not the server stopping.
func (a *API) triggerTick(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")
	ctx := trace.ContextWithSpan(a.base, trace.SpanFromContext(r.Context()))
	status, err := a.d.RunOnce(ctx, name)
	switch {
	case errors.Is(err, jobhost.ErrDomainNotFound), errors.Is(err, jobhost.ErrTickInProgress):
		a.writeError(w, err)
		return
	}

	resp := TickResponse{Domain: name, Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func statusCode(err error) int {
	switch {
	case errors.Is(err, jobhost.ErrDomainNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobhost.ErrTickInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	a.writeJSON(w, statusCode(err), ErrorResponse{Error: err.Error()})
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("write response failed", slog.String("error", err.Error()))
	}
}
