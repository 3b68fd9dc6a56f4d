// Command precompute walks event occurrences far into the future and keeps
// them in the precomputed event table served by the HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/scenario"
)

const defaultStorePath = "/tmp/sebaka/precomputed_events.json"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand. Flags are read through
// v so that SEBAKA_* environment variables override defaults.
type cli struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	c.v.SetEnvPrefix("SEBAKA")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "precompute",
		Short: "Precompute and inspect Sebaka celestial event occurrences",
		Long: `
Walks every configured celestial event forward from a start time, persisting
each stable occurrence to the precomputed event table. Interrupted runs resume
after the last stored occurrence of each event.

Every flag can also be set with a SEBAKA_ environment variable, for example
SEBAKA_STORE=postgres SEBAKA_DATABASE_URL=postgres://... precompute run
`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.String("catalog-file", "", "scenario file or http(s) URL (YAML, JSON or TOML); empty uses the built-in scenario")
	pf.String("store", eventstore.BackendFile, "event store backend: file, postgres or memory")
	pf.String("store-path", defaultStorePath, "event table path for the file backend")
	pf.String("database-url", "", "PostgreSQL URL for the postgres backend")
	pf.String("log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		c.runCmd(),
		c.findCmd(),
		c.listCmd(),
		c.eventsCmd(),
	)
	return root
}

// setup binds the executing command's flags and builds the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	c.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: parseLevel(c.v.GetString("log-level")),
	}))
	return nil
}

func parseLevel(v string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// loadScenario reads the scenario and compiles its catalog and events.
func (c *cli) loadScenario(ctx context.Context) (*catalog.System, *events.Registry, error) {
	path := c.v.GetString("catalog-file")
	scn, err := scenario.Load(ctx, path, c.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("loading scenario: %w", err)
	}
	reg, err := scn.Registry()
	if err != nil {
		return nil, nil, fmt.Errorf("compiling events: %w", err)
	}
	sys, err := catalog.Preprocess(scn.Catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("preprocessing catalog: %w", err)
	}
	c.logger.Debug("scenario loaded", "file", path, "bodies", len(sys.Names()), "events", len(reg.Names()))
	return sys, reg, nil
}

// openStore opens the configured event store. The returned close func is
// always safe to call.
func (c *cli) openStore(ctx context.Context) (eventstore.Store, func(), error) {
	backend := c.v.GetString("store")
	store, closeStore, err := eventstore.Open(ctx, backend, c.v.GetString("store-path"), c.v.GetString("database-url"), c.logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening %s event store: %w", backend, err)
	}
	if store == nil {
		closeStore()
		return nil, func() {}, eventstore.ErrNoStore
	}
	return store, closeStore, nil
}

// failed reports a command error on the logger and passes it through so
// cobra still exits non-zero.
func (c *cli) failed(msg string, err error) error {
	if errors.Is(err, context.Canceled) {
		c.logger.Warn(msg, "error", err)
	} else {
		c.logger.Error(msg, "error", err)
	}
	return err
}
