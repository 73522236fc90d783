package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteDB wraps a database/sql handle opened with the pure-Go SQLite driver.
type SQLiteDB struct {
	DB     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteDB opens (and creates if needed) the database file at path.
func NewSQLiteDB(ctx context.Context, path string, logger *zap.Logger) (*SQLiteDB, error) {
	cleanPath := filepath.Clean(path)

	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL for concurrent readers, busy_timeout so writers queue instead of failing.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", cleanPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers inside the process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("opened SQLite database", zap.String("path", cleanPath))

	return &SQLiteDB{DB: db, path: cleanPath, logger: logger}, nil
}

// Close closes the database handle.
func (s *SQLiteDB) Close() error {
	if s.DB == nil {
		return nil
	}
	s.logger.Info("SQLite database closed", zap.String("path", s.path))
	return s.DB.Close()
}
