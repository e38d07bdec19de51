package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosterwatch/rosterwatch/internal/core/engine"
	"github.com/rosterwatch/rosterwatch/internal/observability"
	"github.com/rosterwatch/rosterwatch/internal/output"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously refresh the roster",
	Long: `Continuously refresh the roster on a timer, pausing while offline.

A tick that arrives while the previous cycle is still running is
skipped rather than queued. Ctrl+C cancels the active cycle and exits
after in-flight fetches settle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fe, err := newFetchEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer fe.Close() // nolint:errcheck // best-effort cleanup

		interval := watchInterval
		if interval <= 0 {
			interval = fe.cfg.Watch.AutoRefresh
		}
		if interval <= 0 {
			return fmt.Errorf("watch requires a positive refresh interval (watch.auto_refresh or --interval)")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		signals.OnShutdown(func(shutdownCtx context.Context) error {
			observability.CLILogger.Info("Shutting down, cancelling active cycle...")
			fe.scheduler.CancelCycle()
			cancel()
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.CLILogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		go func() {
			if err := signals.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				observability.CLILogger.Warn("Signal handler error", zap.Error(err))
			}
		}()

		monitor := fe.connectivityMonitor()
		go monitor.Run(ctx)

		go logCycleEvents(fe.scheduler.Subscribe())

		observability.CLILogger.Info("Watching roster",
			zap.Duration("interval", interval),
			zap.Int("concurrency", fe.cfg.Fetch.Concurrency))

		runWatchCycle(ctx, fe)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runWatchCycle(ctx, fe)
			}
		}
	},
}

// runWatchCycle runs one cycle, treating an already-active cycle as a
// skipped tick.
func runWatchCycle(ctx context.Context, fe *fetchEngine) {
	if ctx.Err() != nil {
		return
	}

	stats, err := fe.runCycle(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrCycleActive) {
			observability.CLILogger.Debug("Previous cycle still active, skipping tick")
			return
		}
		observability.CLILogger.Warn("Refresh cycle failed", zap.Error(err))
		return
	}

	fmt.Println(output.FormatStatsLine(stats))
}

// logCycleEvents drains scheduler events into the CLI logger.
func logCycleEvents(events <-chan engine.Event) {
	for event := range events {
		switch e := event.(type) {
		case engine.ItemResultEvent:
			if e.Result.Success() {
				continue
			}
			observability.CLILogger.Debug("Fetch failed",
				zap.Int64("id", e.Result.ID),
				zap.String("kind", string(e.Result.Err)),
				zap.String("message", e.Result.Message))
		case engine.ConnectivityEvent:
			if e.Online {
				observability.CLILogger.Info("Connectivity restored, resuming dispatch")
			} else {
				observability.CLILogger.Warn("Connectivity lost, pausing dispatch")
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "refresh interval (overrides watch.auto_refresh)")
}
