package agenda

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventspan/eventspan/storage"
	"github.com/eventspan/eventspan/timeutil"
)

// FilterOptions controls the exact phase of period filtering.
type FilterOptions struct {
	// Exact re-validates every approximate candidate by expanding its
	// occurrences and drops those with none in the window. This performs one
	// expansion per candidate, which can be slow for large collections.
	Exact bool

	// SkipInvalidRules makes the exact phase skip (and log) a record whose
	// repeat rule fails to parse instead of aborting the whole batch.
	SkipInvalidRules bool
}

// ForPeriod returns the occurrence records whose occurrences may intersect
// win.
//
// The approximate phase is pushed down to the store and never produces false
// negatives, but a repeating record's true next occurrence cannot be known
// without expansion, so false positives remain unless Exact is set. The "to"
// side needs no re-validation: a record's earliest occurrence is its start.
func (a *Agenda) ForPeriod(ctx context.Context, win timeutil.Range, opts FilterOptions) ([]*storage.OccurrenceRecord, error) {
	recs, err := a.store.ListOccurrences(ctx, a.rangeFilter(win))
	if err != nil {
		return nil, fmt.Errorf("listing occurrence records: %w", err)
	}
	if !opts.Exact || win.From.IsZero() {
		return recs, nil
	}

	out := make([]*storage.OccurrenceRecord, 0, len(recs))
	for _, rec := range recs {
		ok, err := a.hasOccurrence(rec, win)
		if err != nil {
			if opts.SkipInvalidRules {
				a.log.Warn("skipping record with unparsable repeat rule",
					"record", rec.ID, "repeat", rec.Repeat, "err", err)
				continue
			}
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// EventsForPeriod returns the events with at least one occurrence record
// surviving ForPeriod's phases, ordered by their earliest surviving record.
func (a *Agenda) EventsForPeriod(ctx context.Context, win timeutil.Range, opts FilterOptions) ([]*storage.EventRecord, error) {
	recs, err := a.ForPeriod(ctx, win, opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	var out []*storage.EventRecord
	for _, rec := range recs {
		if seen[rec.EventID] {
			continue
		}
		seen[rec.EventID] = true

		ev, err := a.store.GetEvent(ctx, rec.EventID)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", rec.EventID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// hasOccurrence reports whether rec actually yields anything in win,
// expanding at most one occurrence.
func (a *Agenda) hasOccurrence(rec *storage.OccurrenceRecord, win timeutil.Range) (bool, error) {
	seq, err := a.engine.Expand(rec.Series(), win, 0)
	if err != nil {
		return false, err
	}
	for range seq {
		return true, nil
	}
	return false, nil
}
