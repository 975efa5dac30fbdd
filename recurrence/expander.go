package recurrence

import (
	"iter"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"github.com/eventspan/eventspan/timeutil"
)

// DefaultLimit is the hard per-series safety cap on expanded occurrences. It
// bounds malformed or unbounded rules independently of the query window.
const DefaultLimit = 200

// ExpanderConfig holds construction options for an Expander.
type ExpanderConfig struct {
	// Times is the process-wide zone configuration.
	Times timeutil.Config

	// Repeater builds rule sets for repeating series. Nil means
	// StandardRepeater.
	Repeater RepeaterFunc

	// CacheEnabled turns on caching of per-series expansions.
	CacheEnabled bool
	CacheConfig  CacheConfig
}

// DefaultExpanderConfig is the stock configuration: naive time, standard
// rule parsing, no cache.
var DefaultExpanderConfig = ExpanderConfig{}

// Expander turns series definitions into lazy occurrence sequences.
type Expander struct {
	times    timeutil.Config
	repeater RepeaterFunc
	cache    *Cache
}

// NewExpander creates an Expander with the default configuration.
func NewExpander() *Expander {
	return NewExpanderWithConfig(DefaultExpanderConfig)
}

// NewExpanderWithConfig creates an Expander with custom configuration.
func NewExpanderWithConfig(cfg ExpanderConfig) *Expander {
	e := &Expander{
		times:    cfg.Times,
		repeater: cfg.Repeater,
	}
	if e.repeater == nil {
		e.repeater = StandardRepeater
	}
	if cfg.CacheEnabled {
		cc := cfg.CacheConfig
		if cc.TTL <= 0 {
			cc = DefaultCacheConfig
		}
		e.cache = NewCache(cc)
	}
	return e
}

// Times returns the zone configuration the expander was built with.
func (e *Expander) Times() timeutil.Config { return e.times }

// Close releases the expansion cache, if any.
func (e *Expander) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Expand returns the lazy, finite, date-ordered sequence of concrete
// occurrences for s within win. The sequence is single-use.
//
// A non-repeating series yields its one occurrence iff its [start, end]
// interval intersects the window: an occurrence already in progress at the
// window's lower bound still counts. A repeating series streams occurrence
// starts from the rule set, re-zoned into the caller's representation, up to
// limit occurrences (limit <= 0 means DefaultLimit). Rules with no upper
// bound are cut off at a far-future sentinel about ten years out.
//
// The only error is a rule parse failure, reported before any occurrence is
// produced.
func (e *Expander) Expand(s Series, win timeutil.Range, limit int) (iter.Seq[Occurrence], error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if s.Start.IsZero() {
		return emptySeq, nil
	}

	from := e.times.ResolveFrom(win.From)
	to := e.times.ResolveTo(win.To)
	delta := s.Duration()

	if s.Repeat == "" {
		return e.expandSingle(s, from, to, delta), nil
	}
	return e.expandRepeating(s, from, to, delta, limit)
}

func emptySeq(func(Occurrence) bool) {}

func (e *Expander) expandSingle(s Series, from, to time.Time, delta time.Duration) iter.Seq[Occurrence] {
	end := s.Start.Add(delta)
	inWindow := (from.IsZero() || !s.Start.Before(from) || !end.Before(from)) &&
		(to.IsZero() || !s.Start.After(to))

	return func(yield func(Occurrence) bool) {
		if inWindow {
			yield(Occurrence{Start: s.Start, End: end, Data: s.Data})
		}
	}
}

func (e *Expander) expandRepeating(s Series, from, to time.Time, delta time.Duration, limit int) (iter.Seq[Occurrence], error) {
	// Start from the first occurrence at the earliest.
	if from.IsZero() || from.Before(s.Start) {
		from = s.Start
	}

	// Look until the last permissible occurrence, up to the sentinel for
	// otherwise unbounded rules.
	if s.RepeatUntil != nil {
		until := e.times.ResolveTo(timeutil.DayOf(*s.RepeatUntil))
		if to.IsZero() || until.Before(to) {
			to = until
		}
	} else if to.IsZero() {
		to = e.times.Aware(timeutil.MaxFutureDate())
	}

	// The rule set only reasons about start times, so pull the lower bound
	// back by the occurrence length: an occurrence that started before the
	// window but is still running inside it must be found.
	from = from.Add(-delta)

	set, err := e.repeater(s.Repeat, e.times.Naive(s.Start))
	if err != nil {
		return nil, err
	}

	naiveFrom := e.times.Naive(from)
	naiveTo := e.times.Naive(to)

	if e.cache != nil {
		starts, ok := e.cache.Get(s, naiveFrom, naiveTo, limit)
		if !ok {
			starts = collectStarts(set, naiveFrom, naiveTo, limit)
			e.cache.Set(s, naiveFrom, naiveTo, limit, starts)
		}
		return func(yield func(Occurrence) bool) {
			for _, occStart := range starts {
				if !e.yieldAt(occStart, delta, s.Data, yield) {
					return
				}
			}
		}, nil
	}

	return func(yield func(Occurrence) bool) {
		next := set.Iterator()
		count := 0
		for {
			occStart, ok := next()
			if !ok {
				return
			}
			if occStart.Before(naiveFrom) {
				continue
			}
			if occStart.After(naiveTo) {
				return
			}
			count++
			if count > limit {
				return
			}
			if !e.yieldAt(occStart, delta, s.Data, yield) {
				return
			}
		}
	}, nil
}

// yieldAt re-zones a naive occurrence start and emits the occurrence.
func (e *Expander) yieldAt(occStart time.Time, delta time.Duration, data any, yield func(Occurrence) bool) bool {
	start := e.times.Aware(occStart)
	return yield(Occurrence{Start: start, End: start.Add(delta), Data: data})
}

// collectStarts drains the rule set's naive starts within the window, capped
// at limit, for caching.
func collectStarts(set *rrule.Set, naiveFrom, naiveTo time.Time, limit int) []time.Time {
	var starts []time.Time
	next := set.Iterator()
	for {
		t, ok := next()
		if !ok || t.After(naiveTo) || len(starts) >= limit {
			return starts
		}
		if t.Before(naiveFrom) {
			continue
		}
		starts = append(starts, t)
	}
}

// Next returns the first occurrence of s at or after from (defaulting to
// now), or None when the series has none.
func (e *Expander) Next(s Series, from time.Time) (mo.Option[Occurrence], error) {
	if from.IsZero() {
		from = time.Now()
	}
	seq, err := e.Expand(s, timeutil.Range{From: timeutil.At(from)}, 0)
	if err != nil {
		return mo.None[Occurrence](), err
	}
	return First(seq), nil
}

// FirstOf returns the very first occurrence of s, or None.
func (e *Expander) FirstOf(s Series) (mo.Option[Occurrence], error) {
	seq, err := e.Expand(s, timeutil.Range{}, 0)
	if err != nil {
		return mo.None[Occurrence](), err
	}
	return First(seq), nil
}

// First pulls a single element from a sequence and discards the rest.
func First(seq iter.Seq[Occurrence]) mo.Option[Occurrence] {
	for o := range seq {
		return mo.Some(o)
	}
	return mo.None[Occurrence]()
}
