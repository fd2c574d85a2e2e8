package db

import (
	"database/sql"
	"fmt"

	"staff-portal/config"

	_ "github.com/lib/pq" // Postgres driver
)

var openDB = sql.Open

// Connect opens and pings the Postgres database backing the document store.
func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Engine != "postgres" {
		return nil, fmt.Errorf("unsupported database engine: %s", cfg.Engine)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, quote(cfg.Password), cfg.Name, cfg.SSLMode)

	conn, err := openDB("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	return conn, nil
}

// quote wraps a connection-string value so spaces and quotes survive.
func quote(value string) string {
	escaped := make([]rune, 0, len(value)+2)
	escaped = append(escaped, '\'')
	for _, r := range value {
		if r == '\'' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, r)
	}
	return string(append(escaped, '\''))
}
