package cmd

import (
	"context"
	"os"
	"time"

	"github.com/recompkit/rkl/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	timeout    time.Duration
)

// Execute runs the CLI. Cancelling ctx stops the running command.
func Execute(ctx context.Context) {
	rootCmd := createRootCmd()
	initializeDatabase()
	defer closeDatabase()

	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		rootCmd.PrintErrln("Error:", err)
		closeDatabase()
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rkl",
		Short:         "A launcher and updater for recompiled games",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeLogFile()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the settings file (default ~/.rkl/settings.yaml)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "T", 0, "Abort network operations after this long (0 means no limit)")

	rootCmd.AddCommand(
		listCmd(),
		refreshCmd(),
		statusCmd(),
		playCmd(),
		deleteCmd(),
		exeCmd(),
		hideCmd(),
		unhideCmd(),
		filterCmd(),
		pathCmd(),
		lastPlayedCmd(),
		changelogCmd(),
		iconCmd(),
		loginCmd(),
		logoutCmd(),
		watchCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

func initializeDatabase() {
	if err := db.InitDB(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		os.Exit(1)
	}
}

func closeDatabase() {
	if db.GetDB() == nil {
		return
	}
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
		os.Exit(1)
	}
}
