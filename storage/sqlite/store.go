// Package sqlite provides a Storage implementation backed by an embedded
// SQLite database. The approximate range predicate is pushed down as SQL
// over indexed columns, so large collections are narrowed by the database
// rather than in memory.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eventspan/eventspan/recurrence"
	"github.com/eventspan/eventspan/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      TEXT PRIMARY KEY,
	title   TEXT NOT NULL DEFAULT '',
	created INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS occurrences (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	start_at     INTEGER NOT NULL,
	end_at       INTEGER,
	repeat       TEXT NOT NULL DEFAULT '',
	repeat_until TEXT,
	label        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS occurrences_start_at ON occurrences (start_at);
CREATE INDEX IF NOT EXISTS occurrences_end_at ON occurrences (end_at);
CREATE INDEX IF NOT EXISTS occurrences_event_id ON occurrences (event_id);
`

// repeat_until is kept at date precision as ISO text so lexical comparison
// matches date comparison.
const dayLayout = "2006-01-02"

// Store implements storage.Storage on a SQLite database.
//
// Timestamps are persisted as Unix seconds and read back in UTC, so the
// store keeps instants, not wall-clock readings; pair it with a zone-aware
// time configuration or UTC-naive records.
type Store struct {
	db *sql.DB

	// Choices restricts the repeat rules accepted on write. Nil permits
	// free-form rule text.
	Choices []recurrence.Choice
}

// Open opens (creating if necessary) the database at path and prepares the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewWithDB(db)
}

// NewWithDB wraps an existing database handle, preparing the schema.
func NewWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("preparing schema: %w", err)
	}
	return &Store{db: db, Choices: recurrence.DefaultRepeatChoices}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Event operations

func (s *Store) CreateEvent(ctx context.Context, ev *storage.EventRecord) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Created.IsZero() {
		ev.Created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, title, created) VALUES (?, ?, ?)`,
		ev.ID.String(), ev.Title, ev.Created.Unix())
	if err != nil {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "event insert failed", Err: err}
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*storage.EventRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created FROM events WHERE id = ?`, id.String())
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]*storage.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created FROM events ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []*storage.EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("reading event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM occurrences WHERE event_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting event occurrences: %w", err)
	}
	return nil
}

// Occurrence record operations

func (s *Store) CreateOccurrence(ctx context.Context, rec *storage.OccurrenceRecord) error {
	if err := rec.Validate(s.Choices); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO occurrences (id, event_id, start_at, end_at, repeat, repeat_until, label)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.EventID.String(), rec.Start.Unix(),
		nullUnix(rec.End), rec.Repeat, nullDay(rec.RepeatUntil), rec.Label)
	if err != nil {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "occurrence insert failed", Err: err}
	}
	return nil
}

func (s *Store) GetOccurrence(ctx context.Context, id uuid.UUID) (*storage.OccurrenceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, start_at, end_at, repeat, repeat_until, label
		 FROM occurrences WHERE id = ?`, id.String())
	rec, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "occurrence not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading occurrence: %w", err)
	}
	return rec, nil
}

func (s *Store) UpdateOccurrence(ctx context.Context, rec *storage.OccurrenceRecord) error {
	if err := rec.Validate(s.Choices); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE occurrences SET event_id = ?, start_at = ?, end_at = ?, repeat = ?, repeat_until = ?, label = ?
		 WHERE id = ?`,
		rec.EventID.String(), rec.Start.Unix(), nullUnix(rec.End),
		rec.Repeat, nullDay(rec.RepeatUntil), rec.Label, rec.ID.String())
	if err != nil {
		return fmt.Errorf("updating occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "occurrence not found"}
	}
	return nil
}

func (s *Store) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM occurrences WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "occurrence not found"}
	}
	return nil
}

func (s *Store) ListOccurrences(ctx context.Context, f *storage.RangeFilter) ([]*storage.OccurrenceRecord, error) {
	return s.list(ctx, uuid.Nil, f)
}

func (s *Store) ListEventOccurrences(ctx context.Context, eventID uuid.UUID, f *storage.RangeFilter) ([]*storage.OccurrenceRecord, error) {
	return s.list(ctx, eventID, f)
}

// list translates the approximate range predicate into indexed SQL
// conditions. The WHERE clause mirrors storage.RangeFilter.Match.
func (s *Store) list(ctx context.Context, eventID uuid.UUID, f *storage.RangeFilter) ([]*storage.OccurrenceRecord, error) {
	query := `SELECT id, event_id, start_at, end_at, repeat, repeat_until, label FROM occurrences WHERE 1=1`
	var args []any

	if eventID != uuid.Nil {
		query += ` AND event_id = ?`
		args = append(args, eventID.String())
	}
	if f != nil && f.To != nil {
		query += ` AND start_at <= ?`
		args = append(args, f.To.Unix())
	}
	if f != nil && f.From != nil {
		query += ` AND ((end_at IS NOT NULL AND end_at >= ?) OR start_at >= ?
			OR (repeat != '' AND (repeat_until IS NULL OR repeat_until >= ?)))`
		args = append(args, f.From.Unix(), f.From.Unix(), f.From.Format(dayLayout))
	}
	query += ` ORDER BY start_at, end_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences: %w", err)
	}
	defer rows.Close()

	var out []*storage.OccurrenceRecord
	for rows.Next() {
		rec, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("reading occurrence: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MigrateIntegerRepeat rewrites legacy integer repeat codes into rule
// strings in bulk, leaving values that already contain rule text untouched.
func (s *Store) MigrateIntegerRepeat(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE occurrences SET repeat = CASE repeat
			WHEN '0' THEN 'RRULE:FREQ=YEARLY'
			WHEN '1' THEN 'RRULE:FREQ=MONTHLY'
			WHEN '2' THEN 'RRULE:FREQ=WEEKLY'
			WHEN '3' THEN 'RRULE:FREQ=DAILY'
			ELSE ''
		END
		WHERE repeat != '' AND instr(repeat, 'RRULE:') = 0 AND instr(repeat, 'EXDATE:') = 0`)
	if err != nil {
		return 0, fmt.Errorf("migrating repeat codes: %w", err)
	}
	return res.RowsAffected()
}

// scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*storage.EventRecord, error) {
	var (
		id      string
		title   string
		created int64
	)
	if err := row.Scan(&id, &title, &created); err != nil {
		return nil, err
	}
	eid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", id, err)
	}
	return &storage.EventRecord{ID: eid, Title: title, Created: time.Unix(created, 0).UTC()}, nil
}

func scanOccurrence(row rowScanner) (*storage.OccurrenceRecord, error) {
	var (
		id, eventID string
		startAt     int64
		endAt       sql.NullInt64
		repeat      string
		repeatUntil sql.NullString
		label       string
	)
	if err := row.Scan(&id, &eventID, &startAt, &endAt, &repeat, &repeatUntil, &label); err != nil {
		return nil, err
	}

	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse occurrence id %q: %w", id, err)
	}
	eid, err := uuid.Parse(eventID)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", eventID, err)
	}

	rec := &storage.OccurrenceRecord{
		ID:      rid,
		EventID: eid,
		Start:   time.Unix(startAt, 0).UTC(),
		Repeat:  repeat,
		Label:   label,
	}
	if endAt.Valid {
		end := time.Unix(endAt.Int64, 0).UTC()
		rec.End = &end
	}
	if repeatUntil.Valid {
		until, err := time.Parse(dayLayout, repeatUntil.String)
		if err != nil {
			return nil, fmt.Errorf("parse repeat_until %q: %w", repeatUntil.String, err)
		}
		rec.RepeatUntil = &until
	}
	return rec, nil
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullDay(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dayLayout)
}
