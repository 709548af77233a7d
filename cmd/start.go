package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/inovacc/trafficr/internal/archiver"
	"github.com/inovacc/trafficr/internal/config"
	"github.com/inovacc/trafficr/internal/github"
	"github.com/inovacc/trafficr/internal/journal"
	"github.com/inovacc/trafficr/internal/nocodb"
	"github.com/inovacc/trafficr/internal/store"
	"github.com/spf13/cobra"
)

var gopsAgent bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the traffic archiver",
	Long: `Start the archiver in the foreground.

The archiver runs one reconciliation cycle immediately, then wakes daily
and runs another whenever the configured period has elapsed: fetch each
repository's traffic window, merge it into the local record store, and
upload records not yet confirmed at the remote table.

The process runs until interrupted with Ctrl+C or SIGTERM. Shutdown waits
for the in-flight record write to complete; no partial state is left
behind.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&gopsAgent, "gops", false, "Expose a gops diagnostics agent")
}

func runStart(cmd *cobra.Command, args []string) error {
	_, _ = cmd, args

	log := newLogger()

	cfg, err := config.Load(config.Locate(cfgPath))
	if err != nil {
		return err
	}

	if gopsAgent {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fmt.Errorf("failed to start gops agent: %w", err)
		}
		defer agent.Close()
	}

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	jnl, err := journal.Open(filepath.Join(cfg.Storage.Path, "journal.bolt"))
	if err != nil {
		return fmt.Errorf("failed to open upload journal: %w", err)
	}
	defer func() { _ = jnl.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("archiver starting",
		slog.Int("repositories", len(cfg.Repositories)),
		slog.Int("period_days", cfg.ArchiverPeriod),
		slog.String("storage", cfg.Storage.Path))

	arc := archiver.New(*cfg, st, github.NewFetcher(), nocodb.NewClient(cfg.Remote), jnl, log)

	if err := arc.Run(ctx); err != nil {
		log.Error("archiver stopped", slog.Any("error", err))

		return err
	}

	log.Info("archiver stopped")

	return nil
}
