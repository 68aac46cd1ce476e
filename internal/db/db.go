package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

type Config struct {
	// Name distinguishes in-memory databases; connections sharing a name share data.
	Name string
}

// OpenMemory opens a private in-memory SQLite database with foreign keys on.
// The data lives as long as the returned handle stays open.
func OpenMemory(cfg Config) (*sql.DB, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("database name required")
	}
	conn, err := sql.Open("sqlite", DSN(cfg.Name))
	if err != nil {
		return nil, err
	}
	// One connection keeps the shared-cache database alive and serializes access.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// DSN returns the connection string for an in-memory database name.
func DSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", url.PathEscape(name))
}
