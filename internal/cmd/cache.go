package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rosterwatch/rosterwatch/internal/config"
	"github.com/rosterwatch/rosterwatch/internal/output"
)

var (
	cacheListFormat   string
	cacheClearExpired bool
	cacheClearYes     bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the persistent entity cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached entity snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(cacheListFormat)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.LoadEntities(cmd.Context())
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Name", "Status", "Fetched", "Age"})
		for _, entry := range entries {
			t.AppendRow(table.Row{
				entry.ID,
				entry.Payload.DisplayName,
				string(entry.Payload.Status),
				entry.FetchedAt.UTC().Format(time.RFC3339),
				time.Since(entry.FetchedAt).Round(time.Second),
			})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d entries", len(entries)), "", "", ""})
		fmt.Println(t.Render())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached entity snapshots",
	Long: `Delete cached entity snapshots. With --expired only entries older than
cache.ttl are removed; clearing everything requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		var cutoff time.Time
		if cacheClearExpired {
			if cfg.Cache.TTL <= 0 {
				return errors.New("--expired requires a positive cache.ttl")
			}
			cutoff = time.Now().UTC().Add(-cfg.Cache.TTL)
		} else if !cacheClearYes {
			return errors.New("clearing the full cache requires --yes (or use --expired)")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.ClearEntities(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d cache entr(ies)\n", deleted)
		return nil
	},
}

func init() {
	cacheListCmd.Flags().StringVar(&cacheListFormat, "output-format", string(output.FormatTable), "Output format: table|json")
	cacheClearCmd.Flags().BoolVar(&cacheClearExpired, "expired", false, "Only delete entries older than cache.ttl")
	cacheClearCmd.Flags().BoolVar(&cacheClearYes, "yes", false, "Confirm full cache clear")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
