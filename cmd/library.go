package cmd

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/recompkit/rkl/game"
	"github.com/recompkit/rkl/library"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/recompkit/rkl/pkg/operations"
	"github.com/recompkit/rkl/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// listCmd shows the games in the library
func listCmd() *cobra.Command {
	var allFlag bool
	var refreshFlag bool
	var sortBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the games in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listGames(cmd, allFlag, refreshFlag, sortBy)
		},
	}

	cmd.Flags().BoolVarP(&allFlag, "all", "a", false, "Include hidden games? [true, false]")
	cmd.Flags().BoolVarP(&refreshFlag, "refresh", "r", false, "Check for new releases before listing? [true, false]")
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "Sort order [Name, NameDesc, Installed, NotInstalled, LastPlayed, Experimental, Custom]; saved for later runs")

	return cmd
}

func listGames(cmd *cobra.Command, all, refresh bool, sortBy string) error {
	if sortBy != "" {
		if err := validation.ValidateSortMode(sortBy); err != nil {
			return err
		}
	}
	sess, err := openLibrary(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	m := sess.manager

	if refresh {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		printFailures(cmd, m.RefreshAll(ctx).Failed)
	}
	if sortBy != "" {
		m.Sort(library.ParseSortMode(sortBy))
		if err := sess.persist(); err != nil {
			return err
		}
	}

	games := m.Games()
	if all {
		games = m.AllGames()
	}
	if len(games) == 0 {
		cmd.Println("No games to show. Use `rkl unhide --all` to show hidden games.")
		return nil
	}

	table := newTable(cmd.OutOrStdout(), []string{"Name", "Status", "Installed", "Latest", "Last Played", "Flags"})
	for _, s := range games {
		table.Append([]string{
			s.Name,
			statusLabel(s),
			orDash(s.InstalledVersion),
			orDash(s.LatestVersion),
			lastPlayedLabel(s.LastPlayed),
			flagsLabel(s),
		})
	}
	table.Render()

	log.Info().Msgf("Listed %d games.", len(games))
	return nil
}

func statusLabel(s game.Snapshot) string {
	if s.Loading {
		return s.Status.String() + " (busy)"
	}
	return s.Status.String()
}

func lastPlayedLabel(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func flagsLabel(s game.Snapshot) string {
	var flags []string
	if s.Experimental {
		flags = append(flags, "experimental")
	}
	if s.Custom {
		flags = append(flags, "custom")
	}
	if s.Hidden {
		flags = append(flags, "hidden")
	}
	return orDash(strings.Join(flags, ", "))
}

func printFailures(cmd *cobra.Command, failed map[string]error) {
	names := make([]string, 0, len(failed))
	for n := range failed {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		cmd.PrintErrf("Warning: %s: %v\n", n, failed[n])
	}
}

// refreshCmd checks every visible game for a new release
func refreshCmd() *cobra.Command {
	var updatesOnly bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Check for new releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			var report library.RefreshReport
			if updatesOnly {
				report = sess.manager.CheckAllUpdates(ctx)
			} else {
				report = sess.manager.RefreshAll(ctx)
			}

			cmd.Printf("Checked %d games.\n", len(report.Checked))
			if len(report.Updates) == 0 {
				cmd.Println("All installed games are up to date.")
			} else {
				cmd.Println("Updates available:")
				for _, n := range report.Updates {
					cmd.Println("  " + n)
				}
			}
			printFailures(cmd, report.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&updatesOnly, "updates", "u", false, "Only check installed games? [true, false]")
	return cmd
}

// statusCmd shows everything known about one game
func statusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show the state of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()
			m := sess.manager
			name := args[0]

			if _, err := m.Game(name); err != nil {
				return err
			}
			if !offline {
				ctx, cancel := commandContext(cmd)
				defer cancel()
				if err := m.CheckStatus(ctx, name); err != nil {
					if !gameerr.Recoverable(err) {
						return err
					}
					cmd.PrintErrln("Warning: could not check the latest release:", err)
				}
			}

			s, err := m.Game(name)
			if err != nil {
				return err
			}
			printStatus(cmd, s, filepath.Join(m.GamesFolder(), s.FolderName))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&offline, "offline", "o", false, "Skip the release check? [true, false]")
	return cmd
}

func printStatus(cmd *cobra.Command, s game.Snapshot, folder string) {
	cmd.Printf("Name: %s\n", s.Name)
	cmd.Printf("Repository: %s\n", s.Repository)
	cmd.Printf("Folder: %s\n", folder)
	cmd.Printf("Status: %s\n", statusLabel(s))
	cmd.Printf("Installed version: %s\n", orDash(s.InstalledVersion))
	cmd.Printf("Latest version: %s\n", orDash(s.LatestVersion))
	cmd.Printf("Last played: %s\n", lastPlayedLabel(s.LastPlayed))
	if s.IsInstalled() {
		if size, err := operations.DirSize(folder); err == nil {
			cmd.Printf("Size on disk: %s\n", humanize.Bytes(uint64(size)))
		}
	}
	cmd.Printf("Executable: %s\n", orDash(s.SelectedExecutable))
	cmd.Printf("Icon: %s\n", orDash(s.Icon()))

	if len(s.AvailableDownloads) == 0 {
		return
	}
	cmd.Println("Downloads:")
	table := newTable(cmd.OutOrStdout(), []string{"Asset", "Size", "Platform", "Selected"})
	for _, a := range s.AvailableDownloads {
		selected := ""
		if s.SelectedDownload != nil && s.SelectedDownload.Name == a.Name {
			selected = "yes"
		}
		table.Append([]string{a.Name, humanize.Bytes(uint64(a.Size)), string(game.IconFor(a.Name)), selected})
	}
	table.Render()
}

// pathCmd shows or changes the games folder
func pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path [newFolder]",
		Short: "Show or change the folder games are installed to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()
			m := sess.manager

			if len(args) == 0 {
				cmd.Println(m.GamesFolder())
				return nil
			}
			if err := m.UpdateGamesFolder(args[0]); err != nil {
				return err
			}
			if err := sess.persist(); err != nil {
				return err
			}
			if err := m.LoadLocal(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Games folder set to %s\n", m.GamesFolder())
			return nil
		},
	}
}

// lastPlayedCmd shows the most recently played installed game
func lastPlayedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last-played",
		Short: "Show the installed game played most recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			s, ok := sess.manager.LatestPlayedInstalledGame()
			if !ok {
				cmd.Println("No installed game has been played yet.")
				return nil
			}
			cmd.Printf("%s (%s)\n", s.Name, lastPlayedLabel(s.LastPlayed))
			return nil
		},
	}
}

// changelogCmd prints the release notes of the latest release
func changelogCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "changelog [name]",
		Short: "Show the release notes of the latest release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			notes, err := sess.manager.Changelog(ctx, args[0], offline)
			if err != nil {
				return err
			}
			if strings.TrimSpace(notes) == "" {
				cmd.Println("The latest release has no release notes.")
				return nil
			}
			cmd.Println(notes)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&offline, "offline", "o", false, "Use the cached release instead of asking GitHub? [true, false]")
	return cmd
}
