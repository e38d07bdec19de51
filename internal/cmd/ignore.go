package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rosterwatch/rosterwatch/internal/config"
	"github.com/rosterwatch/rosterwatch/internal/core/roster"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage the ignore list",
	Long: `Manage the ignore list. Ignored entities stay on the roster but are
skipped by refresh cycles until unignored.`,
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignored entity ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		ids, err := roster.LoadIgnore(cfg.Roster.IgnoreFile)
		if err != nil {
			return err
		}

		if len(ids) == 0 {
			fmt.Println("(no ignored entities)")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Ignore an entity",
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

		ids, err := roster.LoadIgnore(cfg.Roster.IgnoreFile)
		if err != nil {
			return err
		}
		if roster.IgnoreSet(ids)[id] {
			fmt.Printf("Entity %d is already ignored\n", id)
			return nil
		}

		ids = append(ids, id)
		if err := roster.SaveIgnore(cfg.Roster.IgnoreFile, ids); err != nil {
			return err
		}
		fmt.Printf("Ignoring %d (%d ignored)\n", id, len(ids))
		return nil
	},
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Stop ignoring an entity",
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

		ids, err := roster.LoadIgnore(cfg.Roster.IgnoreFile)
		if err != nil {
			return err
		}

		kept := make([]int64, 0, len(ids))
		removed := false
		for _, existing := range ids {
			if existing == id {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}

		if !removed {
			fmt.Printf("Entity %d is not ignored\n", id)
			return nil
		}

		if err := roster.SaveIgnore(cfg.Roster.IgnoreFile, kept); err != nil {
			return err
		}
		fmt.Printf("Unignored %d (%d ignored)\n", id, len(kept))
		return nil
	},
}

func init() {
	ignoreCmd.AddCommand(ignoreListCmd)
	ignoreCmd.AddCommand(ignoreAddCmd)
	ignoreCmd.AddCommand(ignoreRemoveCmd)
	rootCmd.AddCommand(ignoreCmd)
}
