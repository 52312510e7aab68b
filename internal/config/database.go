package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Pool sizing for the message store. Sends are short inserts and list
// queries are index scans, so a modest pool is enough; connections are
// recycled to survive server-side idle timeouts.
const (
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 5 * time.Minute
)

// NewPostgresConnection opens the message store database and verifies it
// is reachable before handing it out.
func NewPostgresConnection(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
