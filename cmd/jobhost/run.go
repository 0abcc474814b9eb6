package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/jobhost/api"
)

func newRunCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every domain and serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, g)
		},
	}
}

func run(ctx context.Context, g *globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}

	tp, shutdownTracing, err := setupTracing(ctx, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	h, err := newHost(ctx, cfg, logger, tp)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("backend close failed", slog.String("error", err.Error()))
		}
	}()

	if err := h.dispatcher.Start(ctx); err != nil {
		return err
	}
	logger.Info("jobhost started",
		slog.Int("domains", len(h.domains)),
		slog.String("lease_backend", cfg.LeaseBackend),
		slog.String("api_addr", cfg.APIAddr),
	)

	// Manual ticks run under serverCtx so shutdown cancels them.
	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	var srv *http.Server
	serveErr := make(chan error, 1)
	if cfg.APIAddr != "" {
		srv = &http.Server{
			Addr: cfg.APIAddr,
			Handler: api.New(h.dispatcher,
				api.WithLogger(logger),
				api.WithBaseContext(serverCtx),
			).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("api server: %w", err)
	}
	logger.Info("jobhost stopping")
	cancelServer()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Warn("api shutdown failed", slog.String("error", err.Error()))
		}
	}
	if err := h.dispatcher.Stop(stopCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
