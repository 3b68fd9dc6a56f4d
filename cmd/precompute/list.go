package main

import (
	"github.com/spf13/cobra"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
)

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [event]",
		Short: "Print stored occurrences, optionally for one event",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.runList,
	}
	cmd.Flags().Int("limit", 50, "maximum rows to print; 0 prints everything")
	return cmd
}

func (c *cli) runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, closeStore, err := c.openStore(ctx)
	if err != nil {
		return c.failed("list failed", err)
	}
	defer closeStore()

	records, err := store.Load(ctx)
	if err != nil {
		return c.failed("list failed", err)
	}
	var name string
	if len(args) == 1 {
		name = args[0]
	}
	records = eventstore.Filter(records, name)
	total := len(records)
	if limit := c.v.GetInt("limit"); limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return renderRecords(cmd.OutOrStdout(), records, total)
}

func (c *cli) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the scenario's events with their estimated recurrence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sys, reg, err := c.loadScenario(cmd.Context())
			if err != nil {
				return c.failed("events failed", err)
			}
			return renderEvents(cmd.OutOrStdout(), reg.All(), sys)
		},
	}
}
