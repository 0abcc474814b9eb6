package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xraph/jobhost/config"
)

// exitCode is returned by a command that finished normally but must exit
// with a non-zero status.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

// globals are the flags shared by every command.
type globals struct {
	domainsFile string
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "jobhost",
		Short:         "Recurring job domains with dependency graphs and distributed leases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.domainsFile, "domains", "f", "", "domains file (overrides JOBHOST_DOMAINS_FILE)")

	cmd.AddCommand(
		newRunCommand(g),
		newOnceCommand(g),
		newValidateCommand(g),
	)
	return cmd
}

// load reads the host configuration, applying command-line overrides.
func (g *globals) load() (config.Host, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Host{}, err
	}
	if g.domainsFile != "" {
		cfg.DomainsFile = g.domainsFile
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg.
func newLogger(w io.Writer, cfg config.Host) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With(slog.String("env", cfg.Env)), nil
}
