package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Config struct {
	Path string
}

func DefaultConfig() Config {
	if p := os.Getenv("TOMDASH_DB_PATH"); p != "" {
		return Config{Path: p}
	}

	// local default: ~/.tomdash/tom.db
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Path: filepath.Join(home, ".tomdash", "tom.db"),
	}
}

// DSN carries the pragmas in the connection string so that every pooled
// connection enforces foreign keys, not just the first one.
func (c Config) DSN() string {
	return c.Path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// MustOpen opens and migrates the database or exits through the logger.
func MustOpen(cfg Config, log *zap.Logger) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatal("failed to open db", zap.String("path", cfg.Path), zap.Error(err))
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		log.Fatal("db migrate failed", zap.Error(err))
	}
	return db
}
