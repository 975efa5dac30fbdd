// Package memory provides a map-backed Storage implementation, used in tests
// and small deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventspan/eventspan/recurrence"
	"github.com/eventspan/eventspan/storage"
)

// Store implements storage.Storage using in-memory maps
type Store struct {
	mu          sync.RWMutex
	events      map[uuid.UUID]*storage.EventRecord
	occurrences map[uuid.UUID]*storage.OccurrenceRecord

	// Choices restricts the repeat rules accepted on write. Nil permits
	// free-form rule text.
	Choices []recurrence.Choice
}

// New creates an empty in-memory store permitting the default repeat rules.
func New() *Store {
	return &Store{
		events:      make(map[uuid.UUID]*storage.EventRecord),
		occurrences: make(map[uuid.UUID]*storage.OccurrenceRecord),
		Choices:     recurrence.DefaultRepeatChoices,
	}
}

// Event operations

func (s *Store) CreateEvent(_ context.Context, ev *storage.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Created.IsZero() {
		ev.Created = time.Now()
	}
	if _, ok := s.events[ev.ID]; ok {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "event already exists"}
	}
	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (*storage.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	cp := *ev
	return &cp, nil
}

func (s *Store) ListEvents(_ context.Context) ([]*storage.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.EventRecord, 0, len(s.events))
	for _, ev := range s.events {
		cp := *ev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) DeleteEvent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return &storage.Error{Type: storage.ErrNotFound, Message: "event not found"}
	}
	delete(s.events, id)
	for occID, rec := range s.occurrences {
		if rec.EventID == id {
			delete(s.occurrences, occID)
		}
	}
	return nil
}

// Occurrence record operations

func (s *Store) CreateOccurrence(_ context.Context, rec *storage.OccurrenceRecord) error {
	if err := rec.Validate(s.Choices); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if _, ok := s.occurrences[rec.ID]; ok {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "occurrence already exists"}
	}
	cp := *rec
	s.occurrences[rec.ID] = &cp
	return nil
}

func (s *Store) GetOccurrence(_ context.Context, id uuid.UUID) (*storage.OccurrenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.occurrences[id]
	if !ok {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "occurrence not found"}
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) UpdateOccurrence(_ context.Context, rec *storage.OccurrenceRecord) error {
	if err := rec.Validate(s.Choices); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occurrences[rec.ID]; !ok {
		return &storage.Error{Type: storage.ErrNotFound, Message: "occurrence not found"}
	}
	cp := *rec
	s.occurrences[rec.ID] = &cp
	return nil
}

func (s *Store) DeleteOccurrence(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occurrences[id]; !ok {
		return &storage.Error{Type: storage.ErrNotFound, Message: "occurrence not found"}
	}
	delete(s.occurrences, id)
	return nil
}

func (s *Store) ListOccurrences(_ context.Context, f *storage.RangeFilter) ([]*storage.OccurrenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(uuid.Nil, f), nil
}

func (s *Store) ListEventOccurrences(_ context.Context, eventID uuid.UUID, f *storage.RangeFilter) ([]*storage.OccurrenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(eventID, f), nil
}

// listLocked applies the approximate predicate record by record; a real
// query layer would translate it into indexed range conditions instead.
func (s *Store) listLocked(eventID uuid.UUID, f *storage.RangeFilter) []*storage.OccurrenceRecord {
	out := make([]*storage.OccurrenceRecord, 0)
	for _, rec := range s.occurrences {
		if eventID != uuid.Nil && rec.EventID != eventID {
			continue
		}
		if !f.Match(rec) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		ei, ej := out[i].End, out[j].End
		switch {
		case ei == nil && ej == nil:
			return out[i].ID.String() < out[j].ID.String()
		case ei == nil:
			return true
		case ej == nil:
			return false
		case !ei.Equal(*ej):
			return ei.Before(*ej)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// MigrateIntegerRepeat rewrites legacy integer repeat codes into rule
// strings, returning the number of records changed.
func (s *Store) MigrateIntegerRepeat(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, rec := range s.occurrences {
		next := storage.CanonicalRepeat(rec.Repeat)
		if next != rec.Repeat {
			rec.Repeat = next
			changed++
		}
	}
	return changed, nil
}
