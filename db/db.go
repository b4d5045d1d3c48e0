package db

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database variables
var (
	Db   *gorm.DB                                          // GORM database instance
	Path = filepath.Join(os.Getenv("HOME"), ".rkl/rkl.db") // Default database path
)

// InitDB opens the database at Path and creates the tables if they don't exist.
func InitDB() error {
	conn, err := Open(Path)
	if err != nil {
		return err
	}
	Db = conn
	log.Info().Str("path", Path).Msg("Database initialized successfully")
	return nil
}

// Open opens (creating if needed) a database at path and migrates it.
func Open(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Error().Err(err).Msg("Failed to create database directory")
		return nil, err
	}

	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger()})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return nil, err
	}

	if err := conn.AutoMigrate(&HiddenGame{}, &ReleaseCache{}, &CustomIcon{}, &Token{}); err != nil {
		log.Error().Err(err).Msg("Failed to auto-migrate database")
		return nil, err
	}
	return conn, nil
}

// newLogger keeps GORM quiet unless debug logging is enabled.
func newLogger() logger.Interface {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

// GetDB returns the database opened by InitDB.
func GetDB() *gorm.DB { return Db }

// CloseDB closes the database opened by InitDB.
func CloseDB() error {
	if Db == nil {
		return nil
	}
	err := Close(Db)
	Db = nil
	return err
}

// Close releases the connection behind conn.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}
