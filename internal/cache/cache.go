// Package cache stores fetched calendar events per day in SQLite and wraps a
// calendar.Source with that store.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/typikon/internal/apperr"
	"github.com/starford/typikon/internal/checksum"
	"github.com/starford/typikon/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS calendar_events (
	day        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL DEFAULT '[]',
	checksum   TEXT NOT NULL DEFAULT '',
	fetched_at INTEGER NOT NULL
);
`

// Entry is one cached day.
type Entry struct {
	Day       string
	Events    []models.RemoteEvent
	Checksum  string
	FetchedAt time.Time
}

// DB wraps a sql.DB holding the event cache.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Get returns the cached entry for day (YYYY-MM-DD) or apperr.ErrNotFound.
func (db *DB) Get(day string) (*Entry, error) {
	var payload, cs string
	var fetched int64
	err := db.conn.QueryRow(
		`SELECT payload, checksum, fetched_at FROM calendar_events WHERE day = ?`, day,
	).Scan(&payload, &cs, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", day, err)
	}

	var events []models.RemoteEvent
	if err := json.Unmarshal([]byte(payload), &events); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", day, err)
	}
	return &Entry{
		Day:       day,
		Events:    events,
		Checksum:  cs,
		FetchedAt: time.Unix(fetched, 0),
	}, nil
}

// Put stores events for day. It reports whether the payload differs from
// what was stored before.
func (db *DB) Put(day string, events []models.RemoteEvent, fetchedAt time.Time) (bool, error) {
	if events == nil {
		events = []models.RemoteEvent{}
	}
	payload, cs, err := checksum.JSON(events)
	if err != nil {
		return false, fmt.Errorf("cache: encode %s: %w", day, err)
	}

	var prev string
	err = db.conn.QueryRow(`SELECT checksum FROM calendar_events WHERE day = ?`, day).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("cache: put %s: %w", day, err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO calendar_events (day, payload, checksum, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			payload    = excluded.payload,
			checksum   = excluded.checksum,
			fetched_at = excluded.fetched_at
	`, day, string(payload), cs, fetchedAt.Unix())
	if err != nil {
		return false, fmt.Errorf("cache: put %s: %w", day, err)
	}
	return prev != cs, nil
}

// Delete removes the entry for day.
func (db *DB) Delete(day string) error {
	if _, err := db.conn.Exec(`DELETE FROM calendar_events WHERE day = ?`, day); err != nil {
		return fmt.Errorf("cache: delete %s: %w", day, err)
	}
	return nil
}

// Purge deletes entries for days before cutoff (YYYY-MM-DD) and returns how
// many were removed.
func (db *DB) Purge(cutoff string) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM calendar_events WHERE day < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: purge: %w", err)
	}
	return res.RowsAffected()
}
