package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/jobhost/config"
	"github.com/xraph/jobhost/feature"
	"github.com/xraph/jobhost/lease"
	"github.com/xraph/jobhost/store/memory"
)

func newValidateCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the domains file and print each domain's job order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			return validate(cfg, cmd.OutOrStdout())
		},
	}
}

// validate registers every domain against an in-memory lease and an
// all-enabled flag source, so only the domain definitions are checked.
func validate(cfg config.Host, out io.Writer) error {
	domains, err := config.LoadDomains(cfg.DomainsFile)
	if err != nil {
		return err
	}
	logger := slog.New(slog.DiscardHandler)
	d, err := newDispatcher(cfg, logger, nil, feature.All, lease.NewManager(memory.New()))
	if err != nil {
		return err
	}
	for _, o := range domains {
		if err := d.Register(o); err != nil {
			return fmt.Errorf("domain %q: %w", o.Domain, err)
		}
	}
	for _, st := range d.Status() {
		cadence := st.Schedule
		if cadence == "" {
			cadence = "every " + st.Interval.String()
		}
		fmt.Fprintf(out, "%s (%s): %s\n", st.Domain, cadence, strings.Join(st.Jobs, " -> "))
	}
	return nil
}
