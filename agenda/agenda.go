// Package agenda ties the storage collaborator to the recurrence engine:
// merged multi-record occurrence streams, two-phase window filtering, and
// next-occurrence ordering.
package agenda

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/mo"

	"github.com/eventspan/eventspan/recurrence"
	"github.com/eventspan/eventspan/storage"
	"github.com/eventspan/eventspan/timeutil"
)

// Agenda answers occurrence queries over a record store.
type Agenda struct {
	store  storage.Storage
	engine *recurrence.Expander
	log    *slog.Logger
}

// Options holds construction options for an Agenda.
type Options struct {
	// Engine is the expander used for all expansions. Nil means a default
	// expander (naive time, no cache).
	Engine *recurrence.Expander

	// Logger receives exact-phase diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// New creates an Agenda reading from store.
func New(store storage.Storage, opts *Options) (*Agenda, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	a := &Agenda{store: store}
	if opts != nil {
		a.engine = opts.Engine
		a.log = opts.Logger
	}
	if a.engine == nil {
		a.engine = recurrence.NewExpander()
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a, nil
}

// Engine returns the expander the agenda was built with.
func (a *Agenda) Engine() *recurrence.Expander { return a.engine }

func (a *Agenda) times() timeutil.Config { return a.engine.Times() }

// rangeFilter resolves a query window into the store's pushdown predicate.
func (a *Agenda) rangeFilter(win timeutil.Range) *storage.RangeFilter {
	f := &storage.RangeFilter{}
	if from := a.times().ResolveFrom(win.From); !from.IsZero() {
		f.From = &from
	}
	if to := a.times().ResolveTo(win.To); !to.IsZero() {
		f.To = &to
	}
	return f
}

// OccurrenceSource is the capability shared by everything that can produce
// occurrences: a single record, an event (the merge of its records), or the
// whole collection. Sequences are lazy and single-use; pulling stops the
// underlying work.
type OccurrenceSource interface {
	// AllOccurrences returns the date-ordered occurrence sequence within
	// win. limit caps the total for merged sources (<= 0 means unlimited);
	// each underlying record is always capped at recurrence.DefaultLimit.
	AllOccurrences(ctx context.Context, win timeutil.Range, limit int) (iter.Seq[recurrence.Occurrence], error)

	// NextOccurrence returns the first occurrence at or after from
	// (defaulting to now), or None.
	NextOccurrence(ctx context.Context, from time.Time) (mo.Option[recurrence.Occurrence], error)

	// FirstOccurrence returns the very first occurrence, or None.
	FirstOccurrence(ctx context.Context) (mo.Option[recurrence.Occurrence], error)
}

// Record views a single occurrence record as an OccurrenceSource.
func (a *Agenda) Record(rec *storage.OccurrenceRecord) OccurrenceSource {
	return recordSource{a: a, rec: rec}
}

// Event views an event, the merge of its occurrence records, as an
// OccurrenceSource.
func (a *Agenda) Event(ev *storage.EventRecord) OccurrenceSource {
	return eventSource{a: a, ev: ev}
}

// Collection views the whole store as an OccurrenceSource.
func (a *Agenda) Collection() OccurrenceSource {
	return collectionSource{a: a}
}

type recordSource struct {
	a   *Agenda
	rec *storage.OccurrenceRecord
}

func (s recordSource) AllOccurrences(_ context.Context, win timeutil.Range, limit int) (iter.Seq[recurrence.Occurrence], error) {
	return s.a.engine.Expand(s.rec.Series(), win, limit)
}

func (s recordSource) NextOccurrence(ctx context.Context, from time.Time) (mo.Option[recurrence.Occurrence], error) {
	return nextFrom(ctx, s, from)
}

func (s recordSource) FirstOccurrence(ctx context.Context) (mo.Option[recurrence.Occurrence], error) {
	return firstOf(ctx, s)
}

type eventSource struct {
	a  *Agenda
	ev *storage.EventRecord
}

func (s eventSource) AllOccurrences(ctx context.Context, win timeutil.Range, limit int) (iter.Seq[recurrence.Occurrence], error) {
	recs, err := s.a.store.ListEventOccurrences(ctx, s.ev.ID, s.a.rangeFilter(win))
	if err != nil {
		return nil, fmt.Errorf("listing occurrence records: %w", err)
	}
	return s.a.mergeRecords(recs, win, limit)
}

func (s eventSource) NextOccurrence(ctx context.Context, from time.Time) (mo.Option[recurrence.Occurrence], error) {
	return nextFrom(ctx, s, from)
}

func (s eventSource) FirstOccurrence(ctx context.Context) (mo.Option[recurrence.Occurrence], error) {
	return firstOf(ctx, s)
}

type collectionSource struct {
	a *Agenda
}

func (s collectionSource) AllOccurrences(ctx context.Context, win timeutil.Range, limit int) (iter.Seq[recurrence.Occurrence], error) {
	recs, err := s.a.store.ListOccurrences(ctx, s.a.rangeFilter(win))
	if err != nil {
		return nil, fmt.Errorf("listing occurrence records: %w", err)
	}
	return s.a.mergeRecords(recs, win, limit)
}

func (s collectionSource) NextOccurrence(ctx context.Context, from time.Time) (mo.Option[recurrence.Occurrence], error) {
	return nextFrom(ctx, s, from)
}

func (s collectionSource) FirstOccurrence(ctx context.Context) (mo.Option[recurrence.Occurrence], error) {
	return firstOf(ctx, s)
}

// mergeRecords expands each record lazily and k-way merges the results.
// Rule parse errors surface here, before anything is yielded.
func (a *Agenda) mergeRecords(recs []*storage.OccurrenceRecord, win timeutil.Range, limit int) (iter.Seq[recurrence.Occurrence], error) {
	seqs := make([]iter.Seq[recurrence.Occurrence], 0, len(recs))
	for _, rec := range recs {
		seq, err := a.engine.Expand(rec.Series(), win, 0)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		seqs = append(seqs, seq)
	}
	return recurrence.Merge(seqs, limit), nil
}

// AllOccurrences returns the merged, date-ordered occurrence sequence of the
// whole store within win, capped at limit (<= 0 means unlimited).
func (a *Agenda) AllOccurrences(ctx context.Context, win timeutil.Range, limit int) (iter.Seq[recurrence.Occurrence], error) {
	return a.Collection().AllOccurrences(ctx, win, limit)
}

func nextFrom(ctx context.Context, src OccurrenceSource, from time.Time) (mo.Option[recurrence.Occurrence], error) {
	if from.IsZero() {
		from = time.Now()
	}
	seq, err := src.AllOccurrences(ctx, timeutil.Range{From: timeutil.At(from)}, 0)
	if err != nil {
		return mo.None[recurrence.Occurrence](), err
	}
	return recurrence.First(seq), nil
}

func firstOf(ctx context.Context, src OccurrenceSource) (mo.Option[recurrence.Occurrence], error) {
	seq, err := src.AllOccurrences(ctx, timeutil.Range{}, 0)
	if err != nil {
		return mo.None[recurrence.Occurrence](), err
	}
	return recurrence.First(seq), nil
}

// SortEventsByNext returns the store's events ordered by their next
// occurrence at or after from, excluding events with none. The result is a
// concrete slice: the sort key is computed per member, so it cannot be
// pushed to the storage layer.
func (a *Agenda) SortEventsByNext(ctx context.Context, from time.Time) ([]*storage.EventRecord, error) {
	events, err := a.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	type keyed struct {
		ev *storage.EventRecord
		at time.Time
	}
	ranked := make([]keyed, 0, len(events))
	for _, ev := range events {
		next, err := a.Event(ev).NextOccurrence(ctx, from)
		if err != nil {
			return nil, err
		}
		if occ, ok := next.Get(); ok {
			ranked = append(ranked, keyed{ev: ev, at: occ.Start})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].at.Before(ranked[j].at) })

	out := make([]*storage.EventRecord, len(ranked))
	for i, k := range ranked {
		out[i] = k.ev
	}
	return out, nil
}
