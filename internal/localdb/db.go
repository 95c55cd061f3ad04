package localdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the local sqlite database that backs per-user durable state:
// the extraction review queue and dismissed recurrence suggestions.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return db, nil
}

// Now returns UTC time truncated to seconds. Repositories stamp rows with
// this instead of SQL CURRENT_TIMESTAMP so reads round-trip exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
