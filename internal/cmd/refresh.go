package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/output"
)

var (
	refreshFormat  string
	refreshOut     string
	refreshOutDir  string
	refreshIDs     string
	refreshNoCache bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle over the roster",
	Long: `Run one refresh cycle over the tracked roster and print the updated
snapshot. Fresh cache entries are served without touching the network;
everything else is fetched through the rate-limited worker pool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(refreshFormat)
		if err != nil {
			return err
		}

		fe, err := newFetchEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer fe.Close() // nolint:errcheck // best-effort cleanup

		if refreshNoCache {
			fe.scheduler.CacheTTL = 0
		}

		var stats core.CycleStats
		if strings.TrimSpace(refreshIDs) != "" {
			ids, err := parseIDList(refreshIDs)
			if err != nil {
				return err
			}
			stats, err = fe.scheduler.Run(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fe.lastCycle.Record(stats)
		} else {
			stats, err = fe.runCycle(cmd.Context())
			if err != nil {
				return err
			}
		}

		sink, err := resolveSink(refreshOut, refreshOutDir, "refresh", format)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatEntities(fe.repo.Snapshot())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
			return err
		}

		if format != output.FormatJSON && format != output.FormatCSV {
			if _, err := fmt.Fprintln(sink.writer, output.FormatStatsLine(stats)); err != nil {
				return err
			}
		}
		return nil
	},
}

func parseIDList(value string) ([]int64, error) {
	parts := strings.Split(value, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]bool)
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid entity id: %q", trimmed)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no valid entity ids in %q", value)
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().StringVar(&refreshFormat, "output-format", string(output.FormatTable), "Output format: table|json|markdown|csv")
	refreshCmd.Flags().StringVar(&refreshOut, "out", "", "Write output to a file (default stdout)")
	refreshCmd.Flags().StringVar(&refreshOutDir, "out-dir", "", "Write output to a directory")
	refreshCmd.Flags().StringVar(&refreshIDs, "ids", "", "Refresh only these comma-separated entity ids")
	refreshCmd.Flags().BoolVar(&refreshNoCache, "no-cache", false, "Skip cache lookups and force remote fetches")
}
