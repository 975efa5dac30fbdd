package recurrence

import (
	"time"
)

// Occurrence is one concrete happening derived from a series: a start, an
// end, and the opaque payload carried through from the series definition.
// Occurrences are ephemeral values built per query, ordered by Start.
type Occurrence struct {
	Start time.Time
	End   time.Time
	Data  any
}

// Series is one base occurrence definition: an anchor start, an optional end,
// and an optional repetition rule.
type Series struct {
	// Start anchors the first (or only) occurrence. A zero Start expands to
	// nothing.
	Start time.Time

	// End, if set, must be after Start; nil means zero duration.
	End *time.Time

	// Repeat is a recurrence rule in iCalendar text form, e.g.
	// "RRULE:FREQ=WEEKLY", possibly with EXDATE lines. Empty means the series
	// does not repeat.
	Repeat string

	// RepeatUntil bounds the last permissible occurrence date (date
	// precision, inclusive). Only meaningful when Repeat is set.
	RepeatUntil *time.Time

	// Data is carried through unchanged to every emitted Occurrence.
	Data any
}

// Duration returns End - Start, or zero when End is unset.
func (s Series) Duration() time.Duration {
	if s.End == nil {
		return 0
	}
	return s.End.Sub(s.Start)
}
