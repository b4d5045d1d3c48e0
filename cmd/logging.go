package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logFile   *lumberjack.Logger
	prevLevel zerolog.Level
)

// setupLogFile sends log output to a rotating file. Without DEBUG_RKL only the file
// receives logs, at info level.
func setupLogFile(path string) {
	if strings.TrimSpace(path) == "" || logFile != nil {
		return
	}
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	prevLevel = zerolog.GlobalLevel()
	if zerolog.GlobalLevel() == zerolog.Disabled {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.MultiLevelWriter(os.Stderr, logFile))
}

func closeLogFile() {
	if logFile == nil {
		return
	}
	if err := logFile.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close log file")
	}
	logFile = nil
	zerolog.SetGlobalLevel(prevLevel)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
