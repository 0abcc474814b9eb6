package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/jobhost/job"
)

// onceResult is printed to stdout by the once command.
type onceResult struct {
	Domain string     `json:"domain"`
	Status job.Status `json:"status"`
	Error  string     `json:"error,omitempty"`
}

func newOnceCommand(g *globals) *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single tick of one domain",
		Long: `Run a single tick of one domain and print its status as JSON.

The exit code is 0 for success, 2 when the tick could not run, 3 when it
was cancelled and 4 when it failed. Other errors exit with 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return once(ctx, g, domain, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "domain to tick")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func once(ctx context.Context, g *globals, domain string, out io.Writer) error {
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
	defer func() { _ = shutdownTracing(context.Background()) }()

	h, err := newHost(ctx, cfg, logger, tp)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("backend close failed", slog.String("error", err.Error()))
		}
	}()

	status, err := h.dispatcher.RunOnce(ctx, domain)
	res := onceResult{Domain: domain, Status: status}
	if err != nil {
		res.Error = err.Error()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		return fmt.Errorf("write result: %w", encErr)
	}
	if status != job.StatusSuccess {
		return exitCode(int(status) + 1)
	}
	return nil
}
