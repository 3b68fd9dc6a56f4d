package main

import (
	"errors"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/precompute"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Find and store occurrences of every selected event up to the horizon",
		Long: `
Searches each event forward from --start, appending every stable occurrence
(with the sun-separation check) to the event store. A run that is interrupted
with Ctrl-C keeps what it found; the next run continues from there.

Examples:
  # Every event, 1000 years, four workers
  precompute run --horizon-years 1000 --workers 4

  # Two events into PostgreSQL
  precompute run --events "Great Conjunction,Beacon Eclipse" --store postgres --database-url postgres://localhost/sebaka
`,
		Args: cobra.NoArgs,
		RunE: c.runPrecompute,
	}
	f := cmd.Flags()
	f.StringSlice("events", nil, "events to compute in priority order (default every event)")
	f.Float64("start", 0, "start time in simulated hours")
	f.Float64("horizon-years", precompute.DefaultHorizonYears, "years to walk past --start")
	f.Int("workers", runtime.NumCPU(), "events searched concurrently")
	f.Float64("buffer-days", precompute.DefaultBufferDays, "days skipped after each occurrence")
	return cmd
}

func (c *cli) runPrecompute(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sys, reg, err := c.loadScenario(ctx)
	if err != nil {
		return c.failed("run failed", err)
	}
	store, closeStore, err := c.openStore(ctx)
	if err != nil {
		return c.failed("run failed", err)
	}
	defer closeStore()

	driver := precompute.NewDriver(store, search.NewFinder(c.logger), c.logger)
	sum, err := driver.Run(ctx, sys, reg, precompute.Plan{
		Events:       c.v.GetStringSlice("events"),
		StartHours:   c.v.GetFloat64("start"),
		HorizonYears: c.v.GetFloat64("horizon-years"),
		Workers:      c.v.GetInt("workers"),
		BufferDays:   c.v.GetFloat64("buffer-days"),
	})
	if len(sum.Events) > 0 {
		if werr := renderSummary(cmd.OutOrStdout(), sum, sys.Time); werr != nil {
			return werr
		}
	}
	if err != nil {
		return c.failed("run stopped", err)
	}
	for _, es := range sum.Events {
		if es.Stop == precompute.StopError {
			return c.failed("run finished with errors", errors.New(es.Name+": "+es.Error))
		}
	}
	return nil
}
