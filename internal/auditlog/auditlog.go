// Package auditlog appends one row per job lifecycle transition to a
// local sqlite database, purely for post-mortem forensics after a
// crash. Per SPEC_FULL.md §7.1, nothing in the normal request path
// ever reads it back -- JobManager remains the sole source of truth
// for job state while the process is alive.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one row: a job transitioning to a new stage or status.
type Event struct {
	JobID     string
	Kind      string // created, stage-changed, or the new status (processing, completed, failed, cancelled)
	Detail    string
	Timestamp time.Time
}

const queueCapacity = 256

// Log drains Events onto a sqlite table from a single background
// goroutine. Publish never blocks the caller: if the queue is full
// (slow disk), the event is dropped and a warning logged, since audit
// logging must never hold up a job.
type Log struct {
	db     *sql.DB
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open creates or attaches to the sqlite file at path and starts the
// drain goroutine.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auditlog: apply pragma %q: %w", pragma, err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS job_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		detail     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auditlog: create schema: %w", err)
	}

	l := &Log{db: db, events: make(chan Event, queueCapacity), done: make(chan struct{})}
	go l.drain()
	return l, nil
}

// Publish enqueues an event, dropping it silently (with a logged
// warning) if the queue is saturated.
func (l *Log) Publish(jobID, kind, detail string) {
	if l == nil {
		return
	}
	select {
	case l.events <- Event{JobID: jobID, Kind: kind, Detail: detail, Timestamp: time.Now()}:
	default:
		log.Printf("auditlog: queue full, dropping event job=%s kind=%s", jobID, kind)
	}
}

func (l *Log) drain() {
	defer close(l.done)
	for ev := range l.events {
		_, err := l.db.ExecContext(context.Background(),
			`INSERT INTO job_events (job_id, kind, detail, created_at) VALUES (?, ?, ?, ?)`,
			ev.JobID, ev.Kind, ev.Detail, ev.Timestamp)
		if err != nil {
			log.Printf("auditlog: write failed: %v", err)
		}
	}
}

// Close stops accepting new events, waits for the queue to drain, and
// closes the database. Calling it again returns the first call's result.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		close(l.events)
		<-l.done
		l.closeErr = l.db.Close()
	})
	return l.closeErr
}
