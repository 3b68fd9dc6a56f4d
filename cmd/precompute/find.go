package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

func (c *cli) findCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <event>",
		Short: "Search one occurrence of an event without touching the store",
		Long: `
Runs a single search and prints the occurrence, if any.

Examples:
  precompute find "Great Conjunction"
  precompute find "Beacon Eclipse" --start 87600 --direction previous
`,
		Args: cobra.ExactArgs(1),
		RunE: c.runFind,
	}
	f := cmd.Flags()
	f.Float64("start", 0, "start time in simulated hours")
	f.String("direction", "next", "next, previous or first")
	f.Bool("sun", false, "also require the primaries to clear the suns")
	return cmd
}

func (c *cli) runFind(cmd *cobra.Command, args []string) error {
	sys, reg, err := c.loadScenario(cmd.Context())
	if err != nil {
		return c.failed("find failed", err)
	}
	ev, err := reg.Get(args[0])
	if err != nil {
		return c.failed("find failed", err)
	}
	dir, err := search.ParseDirection(c.v.GetString("direction"))
	if err != nil {
		return c.failed("find failed", err)
	}

	start := c.v.GetFloat64("start")
	res, err := search.NewFinder(c.logger).Find(cmd.Context(), search.Request{
		StartHours:           start,
		Event:                ev,
		System:               sys,
		Direction:            dir,
		RequireSunSeparation: c.v.GetBool("sun"),
	})
	if err != nil {
		return c.failed("find failed", err)
	}

	out := cmd.OutOrStdout()
	if res == nil {
		_, err := fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s: no occurrence %s of %g h", ev.Name, dir, start)))
		return err
	}
	return renderFound(out, ev.Name, *res, sys.Time)
}
