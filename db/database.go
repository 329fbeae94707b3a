// Package db opens and migrates the deployer's SQLite site database.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig holds the options for opening the site database.
type DBConfig struct {
	// Path is the database file path, or ":memory:" for tests.
	Path string
	// LogLevel is the GORM logging level.
	LogLevel logger.LogLevel
}

// InitDB opens the site database at databasePath with a GORM log level
// derived from the active slog level. Callers run migrations separately.
func InitDB(databasePath string) (*gorm.DB, error) {
	slog.Debug("Initializing database", "path", databasePath)

	db, err := InitDatabase(DBConfig{Path: databasePath, LogLevel: gormLogLevel()})
	if err != nil {
		return nil, err
	}

	slog.Debug("Database initialized successfully", "path", databasePath)
	return db, nil
}

// InitDatabase opens a SQLite database and applies the connection pragmas.
// TranslateError is on so driver-level UNIQUE violations surface as
// gorm.ErrDuplicatedKey; the port allocator matches on that error to detect
// lost claim races.
func InitDatabase(config DBConfig) (*gorm.DB, error) {
	inMemory := config.Path == ":memory:"

	if !inMemory {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Failed to create data directory", "dir", dir, "error", err)
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(config.Path), &gorm.Config{
		Logger:         logger.Default.LogMode(config.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "path", config.Path, "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec(connectionPragmas(inMemory)).Error; err != nil {
		slog.Error("Failed to configure database", "error", err)
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	slog.Debug("Database ready", "path", config.Path)
	return db, nil
}

// connectionPragmas returns the pragma batch applied to every new database.
// busy_timeout matters most: the CLI and the API server can share the file,
// and the port allocator needs constraint errors, not SQLITE_BUSY.
func connectionPragmas(inMemory bool) string {
	pragmas := "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"
	if inMemory {
		return pragmas
	}
	return pragmas + `
	PRAGMA legacy_alter_table = OFF;
	PRAGMA journal_mode       = WAL;
	PRAGMA synchronous        = NORMAL;
	PRAGMA mmap_size          = 134217728;
	PRAGMA journal_size_limit = 27103364;
	PRAGMA cache_size         = 2000;`
}

// gormLogLevel maps the active slog level onto GORM's logger. SQL statements
// only show under debug; silent disables GORM output entirely.
func gormLogLevel() logger.LogLevel {
	ctx := context.Background()
	log := slog.Default()

	switch {
	case log.Enabled(ctx, slog.LevelDebug):
		return logger.Info
	case log.Enabled(ctx, slog.LevelWarn):
		return logger.Warn
	case log.Enabled(ctx, slog.LevelError):
		return logger.Error
	default:
		return logger.Silent
	}
}
