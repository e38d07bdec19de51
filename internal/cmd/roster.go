package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rosterwatch/rosterwatch/internal/config"
	"github.com/rosterwatch/rosterwatch/internal/core/roster"
	"github.com/rosterwatch/rosterwatch/internal/output"
)

var rosterListFormat string

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the tracked roster",
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rosterListFormat)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		targets, err := roster.LoadTargets(cfg.Roster.TargetsFile)
		if err != nil {
			return err
		}
		ignored, err := roster.LoadIgnore(cfg.Roster.IgnoreFile)
		if err != nil {
			return err
		}
		skip := roster.IgnoreSet(ignored)

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(targets, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Name", "Ignored"})
		for _, target := range targets {
			flag := ""
			if skip[target.ID] {
				flag = "yes"
			}
			t.AppendRow(table.Row{target.ID, target.Name, flag})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d targets", len(targets)), ""})
		fmt.Println(t.Render())
		return nil
	},
}

var rosterAddCmd = &cobra.Command{
	Use:   "add <id> [name]",
	Short: "Add an entity to the roster",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePositiveID(args[0])
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 2 {
			name = strings.TrimSpace(args[1])
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		targets, err := roster.LoadTargets(cfg.Roster.TargetsFile)
		if err != nil {
			return err
		}

		updated, added := roster.Add(targets, roster.Entry{ID: id, Name: name})
		if !added {
			fmt.Printf("Entity %d is already tracked\n", id)
			return nil
		}

		if err := roster.SaveTargets(cfg.Roster.TargetsFile, updated); err != nil {
			return err
		}
		fmt.Printf("Added %d to the roster (%d targets)\n", id, len(updated))
		return nil
	},
}

var rosterRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an entity from the roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePositiveID(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		targets, err := roster.LoadTargets(cfg.Roster.TargetsFile)
		if err != nil {
			return err
		}

		updated, removed := roster.Remove(targets, id)
		if !removed {
			fmt.Printf("Entity %d is not tracked\n", id)
			return nil
		}

		if err := roster.SaveTargets(cfg.Roster.TargetsFile, updated); err != nil {
			return err
		}
		fmt.Printf("Removed %d from the roster (%d targets)\n", id, len(updated))
		return nil
	},
}

func parsePositiveID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entity id: %q", value)
	}
	return id, nil
}

func init() {
	rosterListCmd.Flags().StringVar(&rosterListFormat, "output-format", string(output.FormatTable), "Output format: table|json")

	rosterCmd.AddCommand(rosterListCmd)
	rosterCmd.AddCommand(rosterAddCmd)
	rosterCmd.AddCommand(rosterRemoveCmd)
	rootCmd.AddCommand(rosterCmd)
}
