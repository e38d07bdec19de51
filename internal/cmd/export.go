package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/output"
)

var (
	exportFormat string
	exportOut    string
	exportOutDir string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export last-known entity state without fetching",
	Long: `Export the last-known state of every cached entity. No network
requests are made; the data comes from the persistent cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(exportFormat)
		if err != nil {
			return err
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

		entities := make([]core.Entity, 0, len(entries))
		for _, entry := range entries {
			entity := entry.Payload
			entity.ID = entry.ID
			fetched := entry.FetchedAt
			entity.LastFetchedAt = &fetched
			entities = append(entities, entity)
		}

		sink, err := resolveSink(exportOut, exportOutDir, "export", format)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatEntities(entities)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "output-format", string(output.FormatCSV), "Output format: table|json|markdown|csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write output to a file (default stdout)")
	exportCmd.Flags().StringVar(&exportOutDir, "out-dir", "", "Write output to a directory")
}
