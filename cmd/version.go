package cmd

import (
	"runtime"

	"github.com/recompkit/rkl/game"
	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH
)

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("rkl version:", version)
			cmd.Println("Go version:", goVersion)
			cmd.Println("Platform:", platform)
			cmd.Println("Builds:", game.Detect(runtime.GOOS, runtime.GOARCH))
		},
	}
	return cmd
}
