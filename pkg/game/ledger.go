package game

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mosspond/wildspawn/pkg/events"
)

// Ledger records catches, trades, and training results in a SQLite database
// so players can review their recent activity across restarts.
type Ledger struct {
	db *sql.DB
}

// Entry is one ledger row.
type Entry struct {
	At      time.Time
	Kind    string
	Channel string
	Actor   string
	Detail  string
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS activity (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	channel TEXT NOT NULL,
	actor   TEXT NOT NULL,
	detail  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_actor ON activity(actor, at);
`

// OpenLedger opens (creating if needed) the activity database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one activity row.
func (l *Ledger) Record(kind, channel, actor, detail string) error {
	_, err := l.db.Exec(
		"INSERT INTO activity (at, kind, channel, actor, detail) VALUES (?, ?, ?, ?, ?)",
		time.Now().Unix(), kind, channel, actor, detail)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// RecentByActor returns the actor's newest entries, newest first.
func (l *Ledger) RecentByActor(actor string, limit int) ([]Entry, error) {
	rows, err := l.db.Query(
		"SELECT at, kind, channel, actor, detail FROM activity WHERE actor = ? ORDER BY at DESC, id DESC LIMIT ?",
		actor, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent for %s: %w", actor, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&at, &e.Kind, &e.Channel, &e.Actor, &e.Detail); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.At = time.Unix(at, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes entries older than the retention window. Returns the number
// of rows removed.
func (l *Ledger) Purge(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := l.db.Exec("DELETE FROM activity WHERE at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("ledger: purge: %w", err)
	}
	return res.RowsAffected()
}

// StartRetentionCleanup purges expired entries hourly until stop is closed.
// A non-positive retention disables cleanup.
func (l *Ledger) StartRetentionCleanup(retention time.Duration, stop <-chan struct{}) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n, err := l.Purge(retention); err != nil {
					log.Printf("ledger: retention cleanup: %v", err)
				} else if n > 0 {
					log.Printf("ledger: purged %d expired entries", n)
				}
			}
		}
	}()
}

// ActivityWriter subscribes to the event bus and persists the durable
// activity kinds. Notices, spawn announcements, and card displays are
// transient and skipped.
type ActivityWriter struct {
	ledger *Ledger
}

// NewActivityWriter wraps a ledger as a bus subscriber.
func NewActivityWriter(l *Ledger) *ActivityWriter {
	return &ActivityWriter{ledger: l}
}

// Receive persists catch, trade, and training events.
func (w *ActivityWriter) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvCatch, events.EvTrade, events.EvTraining:
	default:
		return
	}
	if err := w.ledger.Record(ev.Type.String(), ev.Channel, ev.Source, ev.Text); err != nil {
		log.Printf("ledger: write %s event: %v", ev.Type, err)
	}
}

// Closed reports false; the writer lives for the process lifetime.
func (w *ActivityWriter) Closed() bool { return false }
