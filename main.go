package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/recompkit/rkl/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main sets the log level from DEBUG_RKL, cancels the running command on interrupt
// and runs the CLI.
func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_RKL is set to anything
// other than "", "0" or "false"; otherwise logging stays off.
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_RKL") {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 2)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	return stopChan
}

// handleInterrupt cancels the running command on the first signal so downloads and
// staging folders are cleaned up. A second signal exits with code 1 right away.
func handleInterrupt(stopChan chan os.Signal, cancel context.CancelFunc, fatalLog func(string), exit func(int)) {
	<-stopChan
	log.Warn().Msg("Interrupt signal received. Stopping...")
	cancel()
	<-stopChan
	fatalLog("Interrupt signal received. Exiting...")
	exit(1)
}
