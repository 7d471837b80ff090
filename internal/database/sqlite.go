package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// NewSQLiteDB opens (creating if needed) the client replica database.
// One connection: the replica serializes writes itself and SQLite has
// no use for a pool here.
func NewSQLiteDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("error configuring sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging sqlite database: %w", err)
	}

	return db, nil
}
