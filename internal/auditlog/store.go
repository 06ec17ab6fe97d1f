// Package auditlog persists monitor events and per-packet validation
// outcomes in SQLite for post-hoc inspection.
package auditlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"packetgate/internal/monitor"
	"packetgate/internal/packet"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS monitor_events (
	event_id       TEXT PRIMARY KEY,
	at             TEXT NOT NULL,
	correlation_id TEXT,
	alert_type     TEXT NOT NULL,
	severity       TEXT NOT NULL,
	detail         TEXT,
	mode           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS validations (
	record_id      TEXT PRIMARY KEY,
	at             TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	packet_id      TEXT NOT NULL,
	packet_type    TEXT NOT NULL,
	ok             INTEGER NOT NULL,
	from_state     TEXT NOT NULL,
	to_state       TEXT NOT NULL,
	errors_json    TEXT,
	warnings_json  TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_correlation ON monitor_events(correlation_id);
CREATE INDEX IF NOT EXISTS idx_validations_correlation ON validations(correlation_id);
`

// #endregion schema

// #region store
// Store is the SQLite-backed audit log. It implements monitor.EventSink.
type Store struct {
	db *sql.DB
}

var _ monitor.EventSink = (*Store)(nil)

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region events
// Append records one monitor event.
func (s *Store) Append(ev monitor.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO monitor_events (event_id, at, correlation_id, alert_type, severity, detail, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.At.UTC().Format(time.RFC3339Nano), ev.CorrelationID,
		string(ev.AlertType), string(ev.Severity), ev.Detail, string(ev.Mode),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Query returns events matching the filter in insertion order.
func (s *Store) Query(f monitor.EventFilter) ([]monitor.Event, error) {
	query := `SELECT event_id, at, correlation_id, alert_type, severity, detail, mode
	          FROM monitor_events WHERE 1=1`
	var args []any
	if f.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, f.CorrelationID)
	}
	if f.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(f.Severity))
	}
	query += " ORDER BY at, event_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []monitor.Event
	for rows.Next() {
		var ev monitor.Event
		var at, alertType, severity, mode string
		if err := rows.Scan(&ev.EventID, &at, &ev.CorrelationID, &alertType, &severity, &ev.Detail, &mode); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		ev.AlertType = packet.AlertType(alertType)
		ev.Severity = packet.Severity(severity)
		ev.Mode = monitor.Mode(mode)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// #endregion events

// #region validations
// ValidationRecord is one persisted per-packet validation outcome.
type ValidationRecord struct {
	RecordID      string
	At            time.Time
	CorrelationID string
	PacketID      string
	PacketType    string
	OK            bool
	FromState     string
	ToState       string
	Errors        []string
	Warnings      []string
}

// ValidationFilter selects validation records. Zero values match everything.
type ValidationFilter struct {
	CorrelationID string
	FailedOnly    bool
}

// RecordValidation persists one validation outcome.
func (s *Store) RecordValidation(rec ValidationRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	warnsJSON, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO validations (record_id, at, correlation_id, packet_id, packet_type, ok, from_state, to_state, errors_json, warnings_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, rec.At.UTC().Format(time.RFC3339Nano), rec.CorrelationID,
		rec.PacketID, rec.PacketType, boolInt(rec.OK), rec.FromState, rec.ToState,
		string(errsJSON), string(warnsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert validation: %w", err)
	}
	return nil
}

// Validations returns validation records matching the filter in insertion
// order.
func (s *Store) Validations(f ValidationFilter) ([]ValidationRecord, error) {
	query := `SELECT record_id, at, correlation_id, packet_id, packet_type, ok, from_state, to_state, errors_json, warnings_json
	          FROM validations WHERE 1=1`
	var args []any
	if f.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, f.CorrelationID)
	}
	if f.FailedOnly {
		query += " AND ok = 0"
	}
	query += " ORDER BY at, record_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query validations: %w", err)
	}
	defer rows.Close()

	var out []ValidationRecord
	for rows.Next() {
		var rec ValidationRecord
		var at, errsJSON, warnsJSON string
		var ok int
		if err := rows.Scan(&rec.RecordID, &at, &rec.CorrelationID, &rec.PacketID,
			&rec.PacketType, &ok, &rec.FromState, &rec.ToState, &errsJSON, &warnsJSON); err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		rec.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse validation time: %w", err)
		}
		rec.OK = ok != 0
		if err := json.Unmarshal([]byte(errsJSON), &rec.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
		if err := json.Unmarshal([]byte(warnsJSON), &rec.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion validations

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
