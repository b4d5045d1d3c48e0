package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// hideCmd hides games from the library list
func hideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hide [names...]",
		Short: "Hide games from the library list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			for _, name := range args {
				if err := sess.manager.Hide(cmd.Context(), name); err != nil {
					return err
				}
				cmd.Printf("%s is now hidden.\n", name)
			}
			return nil
		},
	}
}

// unhideCmd shows hidden games again
func unhideCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "unhide [names...]",
		Short: "Show hidden games again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one game or pass --all")
			}
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()
			m := sess.manager

			if all {
				if err := m.UnhideAll(cmd.Context()); err != nil {
					return err
				}
				cmd.Printf("Hidden list cleared. %d games visible.\n", len(m.Games()))
				return nil
			}
			for _, name := range args {
				if err := m.Unhide(cmd.Context(), name); err != nil {
					return err
				}
				cmd.Printf("%s is visible again.\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Unhide every game? [true, false]")
	return cmd
}

var filterModes = []string{"non-installed", "non-stable", "only-experimental", "only-custom"}

// filterCmd applies one of the bulk visibility filters
func filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter [mode]",
		Short: "Hide games in bulk",
		Long: "Hide games in bulk. Modes:\n" +
			"  non-installed      hide every game that is not installed\n" +
			"  non-stable         hide experimental games\n" +
			"  only-experimental  show experimental games and hide the rest\n" +
			"  only-custom        show custom games and hide the rest",
		Args:      cobra.ExactArgs(1),
		ValidArgs: filterModes,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := strings.ToLower(strings.TrimSpace(args[0]))
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()
			m := sess.manager
			ctx := cmd.Context()

			switch mode {
			case "non-installed":
				err = m.HideNonInstalled(ctx)
			case "non-stable":
				err = m.HideNonStable(ctx)
			case "only-experimental":
				err = m.OnlyShowExperimental(ctx)
			case "only-custom":
				err = m.OnlyShowCustom(ctx)
			default:
				return fmt.Errorf("unknown filter %q, expected one of %s", args[0], strings.Join(filterModes, ", "))
			}
			if err != nil {
				return err
			}
			if err := sess.persist(); err != nil {
				return err
			}
			cmd.Printf("Filter applied. %d games visible.\n", len(m.Games()))
			return nil
		},
	}
}
