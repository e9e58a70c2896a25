package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	defaultDirName = ".taskline"
	defaultDBName  = "taskline.db"
)

type Config struct {
	Workspace string
	// Path, when set, is used instead of the workspace default.
	Path string
}

func (c Config) path() string {
	if c.Path != "" {
		return c.Path
	}
	return dbPath(c.Workspace)
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, defaultDirName, defaultDBName)
}

// Open opens the SQLite database with foreign keys on, creating its
// directory when missing.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
