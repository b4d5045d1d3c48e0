package cmd

import (
	"sort"

	"github.com/spf13/cobra"
)

// iconCmd manages game icons
func iconCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "icon",
		Short: "Manage game icons",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [name] [file]",
			Short: "Use a local image as the icon of a game",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := openLibrary(cmd)
				if err != nil {
					return err
				}
				defer sess.close()

				dest, err := sess.manager.SetCustomIcon(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				cmd.Printf("Icon of %s set to %s\n", args[0], dest)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove [name]",
			Short: "Go back to the default icon of a game",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := openLibrary(cmd)
				if err != nil {
					return err
				}
				defer sess.close()

				if err := sess.manager.RemoveCustomIcon(cmd.Context(), args[0]); err != nil {
					return err
				}
				cmd.Printf("Custom icon of %s removed.\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-cache",
			Short: "Delete all downloaded icons",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := openLibrary(cmd)
				if err != nil {
					return err
				}
				defer sess.close()

				if err := sess.manager.ClearIconCache(); err != nil {
					return err
				}
				cmd.Println("Icon cache cleared.")
				return nil
			},
		},
		iconFetchCmd(),
	)

	return cmd
}

func iconFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [name]",
		Short: "Download icons and print where they are stored",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			if len(args) == 1 {
				p, err := sess.manager.IconPath(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Println(p)
				return nil
			}

			report := sess.manager.CacheIcons(ctx)
			names := make([]string, 0, len(report.Paths))
			for n := range report.Paths {
				names = append(names, n)
			}
			sort.Strings(names)
			table := newTable(cmd.OutOrStdout(), []string{"Name", "Icon"})
			for _, n := range names {
				table.Append([]string{n, report.Paths[n]})
			}
			table.Render()
			printFailures(cmd, report.Failed)
			return nil
		},
	}
}
