// Package history persists stream probe outcomes in a small sqlite database.
// The prober uses it to skip URLs with a fresh result and the status endpoint
// reports the latest outcome per channel. A nil *Store disables persistence;
// every method tolerates it.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS probes (
	url        TEXT PRIMARY KEY,
	ok         INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	checked_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS probes_checked_at ON probes (checked_at);
`

// Result is the latest probe outcome for one stream URL.
type Result struct {
	URL       string
	OK        bool
	Latency   time.Duration
	CheckedAt time.Time
}

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the probe DB at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// One writer at a time; the scheduler serializes passes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts the outcome for url.
func (s *Store) Record(url string, ok bool, latency time.Duration, at time.Time) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO probes (url, ok, latency_ms, checked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET ok=excluded.ok, latency_ms=excluded.latency_ms, checked_at=excluded.checked_at`,
		url, boolInt(ok), latency.Milliseconds(), at.Unix(),
	)
	return err
}

// Fresh returns the stored result for url when it is younger than ttl.
// A ttl of 0 disables reuse entirely.
func (s *Store) Fresh(url string, ttl time.Duration, now time.Time) (Result, bool) {
	if s == nil || ttl <= 0 {
		return Result{}, false
	}
	row := s.db.QueryRow(`SELECT ok, latency_ms, checked_at FROM probes WHERE url = ?`, url)
	var ok, latencyMS, checkedAt int64
	if err := row.Scan(&ok, &latencyMS, &checkedAt); err != nil {
		return Result{}, false
	}
	at := time.Unix(checkedAt, 0)
	if now.Sub(at) > ttl {
		return Result{}, false
	}
	return Result{URL: url, OK: ok != 0, Latency: time.Duration(latencyMS) * time.Millisecond, CheckedAt: at}, true
}

// Latest returns every stored outcome, most recent first.
func (s *Store) Latest() ([]Result, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT url, ok, latency_ms, checked_at FROM probes ORDER BY checked_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var r Result
		var ok, latencyMS, checkedAt int64
		if err := rows.Scan(&r.URL, &ok, &latencyMS, &checkedAt); err != nil {
			return nil, err
		}
		r.OK = ok != 0
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		r.CheckedAt = time.Unix(checkedAt, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes outcomes older than keep. Entries for matches that left the
// playlist stop being refreshed and age out here.
func (s *Store) Prune(keep time.Duration, now time.Time) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM probes WHERE checked_at < ?`, now.Add(-keep).Unix())
	return err
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
