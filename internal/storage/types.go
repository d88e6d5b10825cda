package storage

import (
	"errors"
	"time"
)

// ErrRetryable marks a transaction the database aborted (lock contention,
// serialization failure, deadlock). Repeating the whole transaction may succeed.
var ErrRetryable = errors.New("storage: transaction aborted")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at DSN (a filesystem path)
//   - "postgres": PostgreSQL connection string in DSN
type Config struct {
	Driver       string
	DSN          string
	BusyTimeout  time.Duration // sqlite only; 0 means 5s
	MaxOpenConns int           // postgres only; 0 means driver default
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// forUpdate is appended to row-locking selects. SQLite has no row locks; its
// write transactions already hold the database lock.
func (d dialect) forUpdate() string {
	if d == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
