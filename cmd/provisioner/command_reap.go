package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/organicnz/rustsible-gui/pkg/lib/procdir"
	"github.com/organicnz/rustsible-gui/pkg/lib/reaper"
)

func reap(ctx context.Context, logger *slog.Logger, name string, opts ...reaper.Option) reaper.Report {
	opts = append([]reaper.Option{reaper.WithLogger(logger.With("component", "reaper"))}, opts...)
	if name != "" {
		opts = append(opts, reaper.WithName(name))
	}
	return reaper.New(procdir.New(), reaper.NewOSKiller(), opts...).Reap(ctx, os.Getpid())
}

func newReapCmd(opts *options) *cobra.Command {
	var (
		name  string
		grace time.Duration
		force time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Terminate stale instances left behind by earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := cfg.Logger(os.Stderr, "provisioner")

			report := reap(cmd.Context(), logger, name, reaper.WithWaits(grace, force))
			printReport(cmd.OutOrStdout(), report)
			if len(report.Remaining) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "executable name to reap (default: this program)")
	cmd.Flags().DurationVar(&grace, "grace", reaper.DefaultGraceWait, "wait after graceful termination requests")
	cmd.Flags().DurationVar(&force, "force-wait", reaper.DefaultForceWait, "wait after forced termination requests")
	return cmd
}

func printReport(w io.Writer, r reaper.Report) {
	fmt.Fprintf(w, "found %d, eliminated %d, remaining %d\n", r.Found, r.Eliminated, len(r.Remaining))
	if len(r.Phases) > 0 {
		rows := make([][]string, 0, len(r.Phases))
		for _, ph := range r.Phases {
			requested := strconv.Itoa(len(ph.Requested))
			if ph.Skipped {
				requested = "skipped"
			}
			rows = append(rows, []string{ph.Phase.String(), strconv.Itoa(ph.Targets), requested, strconv.Itoa(ph.Failures)})
		}
		printTable(w, []string{"PHASE", "TARGETS", "REQUESTED", "FAILURES"}, rows)
	}
	if len(r.Remaining) > 0 {
		printProcesses(w, r.Remaining)
	}
}
