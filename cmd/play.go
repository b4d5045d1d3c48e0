package cmd

import (
	"github.com/recompkit/rkl/game"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// playCmd installs, updates or launches a game, whichever applies
func playCmd() *cobra.Command {
	var download string
	var exe string

	cmd := &cobra.Command{
		Use:   "play [name]",
		Short: "Install, update or launch a game",
		Long:  "Install the game when it is missing, update it when a newer release exists, otherwise launch it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return playGame(cmd, args[0], download, exe)
		},
	}

	cmd.Flags().StringVarP(&download, "download", "d", "", "Release asset to install when several match")
	cmd.Flags().StringVarP(&exe, "exe", "e", "", "Executable to launch (relative to the game folder); saved for later runs")

	return cmd
}

func playGame(cmd *cobra.Command, name, download, exe string) error {
	sess, err := openLibrary(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	m := sess.manager

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if download != "" {
		if s, err := m.Game(name); err == nil && len(s.AvailableDownloads) == 0 {
			if err := m.CheckStatus(ctx, name); err != nil {
				return err
			}
		}
		if err := m.SelectDownload(name, download); err != nil {
			return err
		}
	}
	if exe != "" {
		if err := m.SelectExecutable(name, exe); err != nil {
			return err
		}
	}

	out, err := m.PerformAction(ctx, name)
	if err != nil {
		return err
	}

	switch out.Kind {
	case game.OutcomeInstalled:
		cmd.Printf("Installed %s %s.\n", name, out.Version)
	case game.OutcomeLaunched:
		cmd.Printf("Launched %s (pid %d).\n", out.Executable, out.PID)
	case game.NeedsDownloadChoice:
		cmd.Println("Several downloads match this platform:")
		for _, c := range out.Candidates {
			cmd.Println("  " + c)
		}
		cmd.Printf("Pick one with `rkl play %s --download <asset>`.\n", name)
	case game.NeedsExecutableChoice:
		cmd.Println("Several executables were found:")
		for _, c := range out.Candidates {
			cmd.Println("  " + c)
		}
		cmd.Printf("Pick one with `rkl play %s --exe <path>`.\n", name)
	}
	log.Info().Str("game", name).Int("outcome", int(out.Kind)).Msg("Play finished")
	return nil
}

// deleteCmd removes an installed game
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete an installed game from disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.manager.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s.\n", args[0])
			return nil
		},
	}
}

// exeCmd manages the executable launched for a game
func exeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exe",
		Short: "Manage which executable a game launches",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [name] [path]",
			Short: "Launch the given executable from now on",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := openLibrary(cmd)
				if err != nil {
					return err
				}
				defer sess.close()

				if err := sess.manager.SelectExecutable(args[0], args[1]); err != nil {
					return err
				}
				s, _ := sess.manager.Game(args[0])
				cmd.Printf("%s will launch %s.\n", args[0], s.SelectedExecutable)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset [name]",
			Short: "Forget the executable choice so the next launch searches again",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := openLibrary(cmd)
				if err != nil {
					return err
				}
				defer sess.close()

				if err := sess.manager.ClearSelectedExecutable(args[0]); err != nil {
					return err
				}
				cmd.Printf("Executable choice for %s cleared.\n", args[0])
				return nil
			},
		},
	)

	return cmd
}
