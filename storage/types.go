// Package storage defines the record model and the collaborator interface
// the recurrence engine reads from: events, their occurrence records, and a
// range-queryable listing used to narrow candidates cheaply.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventspan/eventspan/recurrence"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// EventRecord is a named event owning one or more occurrence records. An
// event's occurrence sequence is the merge of its records' sequences.
type EventRecord struct {
	ID      uuid.UUID
	Title   string
	Created time.Time
}

// OccurrenceRecord is one stored occurrence definition.
type OccurrenceRecord struct {
	ID      uuid.UUID
	EventID uuid.UUID

	// Start anchors the first (or only) occurrence.
	Start time.Time
	// End, if set, must be strictly after Start.
	End *time.Time
	// Repeat is the recurrence rule text; empty means no repetition.
	Repeat string
	// RepeatUntil bounds the last occurrence date (date precision).
	RepeatUntil *time.Time

	// Label is opaque display data carried through to emitted occurrences.
	Label string
}

// Series converts the record into the engine's series form. The record
// itself rides along as the occurrence payload.
func (r *OccurrenceRecord) Series() recurrence.Series {
	return recurrence.Series{
		Start:       r.Start,
		End:         r.End,
		Repeat:      r.Repeat,
		RepeatUntil: r.RepeatUntil,
		Data:        r,
	}
}

// Validate checks the record's invariants. choices restricts the permitted
// repeat rules; nil permits free-form rule text. The expansion engine assumes
// validated input, so stores call this on every write.
func (r *OccurrenceRecord) Validate(choices []recurrence.Choice) error {
	if r.Start.IsZero() {
		return &Error{Type: ErrInvalidInput, Message: "start is required"}
	}
	if r.End != nil && !r.End.After(r.Start) {
		return &Error{Type: ErrInvalidInput, Message: "end must be after start"}
	}
	if r.RepeatUntil != nil && r.Repeat == "" {
		return &Error{Type: ErrInvalidInput, Message: "select a repeat rule, or remove the repeat-until date"}
	}
	if r.Repeat != "" && !recurrence.PermittedRule(choices, r.Repeat) {
		return &Error{Type: ErrInvalidInput, Message: fmt.Sprintf("repeat rule %q is not permitted", r.Repeat)}
	}
	if r.RepeatUntil != nil {
		sy, sm, sd := r.Start.Date()
		startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
		uy, um, ud := r.RepeatUntil.Date()
		untilDay := time.Date(uy, um, ud, 0, 0, 0, 0, time.UTC)
		if untilDay.Before(startDay) {
			return &Error{Type: ErrInvalidInput, Message: "repeat-until cannot be before the first occurrence"}
		}
	}
	return nil
}

// RangeFilter is the approximate window predicate pushed down to the store.
//
// It is guaranteed to be a superset of the correct answer: a record with an
// in-window occurrence always survives, but a repeating record whose next
// occurrence actually falls outside the window may survive too, because its
// true occurrences cannot be known without expansion. From and To are
// resolved instants (day bounds already normalized by the caller).
type RangeFilter struct {
	From *time.Time
	To   *time.Time
}

// Match applies the predicate to a single record. Stores that can index the
// start/end/repeat/repeat_until fields should translate the same logic into
// their query layer instead of calling Match per row.
func (f *RangeFilter) Match(rec *OccurrenceRecord) bool {
	if f == nil {
		return true
	}
	if f.To != nil && rec.Start.After(*f.To) {
		return false
	}
	if f.From == nil {
		return true
	}
	if rec.End != nil && !rec.End.Before(*f.From) {
		return true
	}
	if !rec.Start.Before(*f.From) {
		return true
	}
	if rec.Repeat != "" {
		if rec.RepeatUntil == nil {
			return true
		}
		uy, um, ud := rec.RepeatUntil.Date()
		untilEnd := time.Date(uy, um, ud, 23, 59, 59, 0, f.From.Location())
		if !untilEnd.Before(*f.From) {
			return true
		}
	}
	return false
}

// Storage is the collaborator interface implemented by storage backends.
// The recurrence engine only reads; the single write-back it requires is the
// one-time MigrateIntegerRepeat administrative operation.
type Storage interface {
	// Event operations
	CreateEvent(ctx context.Context, ev *EventRecord) error
	GetEvent(ctx context.Context, id uuid.UUID) (*EventRecord, error)
	ListEvents(ctx context.Context) ([]*EventRecord, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	// Occurrence record operations
	CreateOccurrence(ctx context.Context, rec *OccurrenceRecord) error
	GetOccurrence(ctx context.Context, id uuid.UUID) (*OccurrenceRecord, error)
	UpdateOccurrence(ctx context.Context, rec *OccurrenceRecord) error
	DeleteOccurrence(ctx context.Context, id uuid.UUID) error

	// ListOccurrences returns records surviving the approximate range
	// predicate, ordered by (start, end). A nil filter returns everything.
	ListOccurrences(ctx context.Context, f *RangeFilter) ([]*OccurrenceRecord, error)
	// ListEventOccurrences is ListOccurrences restricted to one event.
	ListEventOccurrences(ctx context.Context, eventID uuid.UUID, f *RangeFilter) ([]*OccurrenceRecord, error)

	// MigrateIntegerRepeat rewrites legacy integer repeat codes into rule
	// strings, returning the number of records changed. Idempotent by value.
	MigrateIntegerRepeat(ctx context.Context) (int64, error)
}
