package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlitePragmas lets concurrent collector and dispatcher writers queue on the file lock
// instead of failing with SQLITE_BUSY.
const sqlitePragmas = "_journal_mode=WAL&_busy_timeout=5000"

// Connect opens the alert store. PostgreSQL URLs/DSNs select the postgres driver;
// everything else is a SQLite database path.
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("failed to connect to database: empty database url")
	}

	db, err := gorm.Open(dialectorFor(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if IsPostgres(dsn) {
		return postgres.Open(dsn)
	}
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?" + sqlitePragmas
	}
	return sqlite.Open(dsn)
}

// IsPostgres reports whether dsn addresses a PostgreSQL server
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// AutoMigrate creates or updates the alert table and its unique key
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Alert{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
