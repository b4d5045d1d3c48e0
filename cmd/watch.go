package cmd

import (
	"context"
	"time"

	"github.com/recompkit/rkl/library"
	"github.com/spf13/cobra"
)

// watchCmd follows changes to the games folder and prints the games that changed.
func watchCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the games folder and report changes",
		Long:  "Watch the games folder and re-read the install state of games whose folders change, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer sess.close()
			m := sess.manager

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			events, unsubscribe := m.Subscribe()
			defer unsubscribe()
			if err := m.Watch(ctx); err != nil {
				return err
			}
			cmd.Printf("Watching %s\n", m.GamesFolder())

			for {
				select {
				case <-ctx.Done():
					return nil
				case e, ok := <-events:
					if !ok {
						return nil
					}
					printEvent(cmd, m, e)
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&duration, "for", "f", 0, "Stop watching after this long (0 means until interrupted)")
	return cmd
}

func printEvent(cmd *cobra.Command, m *library.Manager, e library.Event) {
	switch e.Kind {
	case library.GameChanged:
		s, err := m.Game(e.Game)
		if err != nil {
			return
		}
		cmd.Printf("%s: %s %s\n", s.Name, statusLabel(s), orDash(s.InstalledVersion))
	case library.OperationFailed:
		cmd.PrintErrf("Warning: %s %s: %v\n", e.Op, e.Game, e.Err)
	case library.LibraryReloaded:
		cmd.Println("Library reloaded.")
	}
}
