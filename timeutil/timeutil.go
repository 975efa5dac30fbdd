// Package timeutil normalizes the date and datetime arguments used to bound
// occurrence queries.
//
// Recurrence arithmetic has to happen in naive wall-clock time: adding "one
// week" to a zone-aware instant shifts the local time whenever the offset
// changes across a DST transition. Config therefore offers two primitives,
// Naive and Aware, that move values between the caller's zoned representation
// and a zone-less wall-clock one. A naive value is represented as its
// wall-clock fields in time.UTC, which has no transitions.
package timeutil

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config describes process-wide time handling: whether zone support is
// enabled, and which zone naive values are read in. It is set once at startup
// and never mutated.
type Config struct {
	// UseZone enables zone-aware results. When false, Aware and Naive are
	// identity functions and callers are assumed to work in naive time only.
	UseZone bool

	// Location is the default zone attached to naive values when UseZone is
	// set. Nil means time.Local.
	Location *time.Location
}

type envConfig struct {
	UseZone bool   `env:"EVENTSPAN_USE_TZ"`
	Zone    string `env:"EVENTSPAN_TZ" envDefault:"Local"`
}

// ConfigFromEnv loads the process-wide configuration from EVENTSPAN_USE_TZ
// and EVENTSPAN_TZ.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse time config: %w", err)
	}

	cfg := Config{UseZone: ec.UseZone}
	if ec.Zone != "" && ec.Zone != "Local" {
		loc, err := time.LoadLocation(ec.Zone)
		if err != nil {
			return Config{}, fmt.Errorf("load zone %q: %w", ec.Zone, err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// Aware reinterprets a naive value's wall-clock fields in the default zone.
// Naive values carry their fields in time.UTC; an input in any other location
// is already zone-aware and is returned unchanged rather than reinterpreted.
// If zone support is disabled the value is returned unchanged.
func (c Config) Aware(t time.Time) time.Time {
	if !c.UseZone || t.IsZero() || t.Location() != time.UTC {
		return t
	}
	return rebuild(t, c.location())
}

// Naive converts a zone-aware value to its wall-clock reading in the default
// zone, dropping the zone. If zone support is disabled the value is returned
// unchanged.
func (c Config) Naive(t time.Time) time.Time {
	if !c.UseZone || t.IsZero() {
		return t
	}
	return rebuild(t.In(c.location()), time.UTC)
}

// rebuild copies t's wall-clock fields into loc without converting.
func rebuild(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), loc)
}

// A Bound is one side of a query window: either an exact instant or a whole
// calendar day. The zero Bound means "unbounded".
type Bound struct {
	t   time.Time
	day bool
}

// At bounds the window at an exact instant.
func At(t time.Time) Bound { return Bound{t: t} }

// OnDay bounds the window at a calendar day. A day used as a "from" bound
// resolves to 00:00:00, as a "to" bound to 23:59:59, so the day is included
// in full on either side.
func OnDay(year int, month time.Month, day int) Bound {
	return Bound{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), day: true}
}

// DayOf bounds the window at t's calendar day.
func DayOf(t time.Time) Bound {
	return Bound{t: t, day: true}
}

// IsZero reports whether the bound is unset.
func (b Bound) IsZero() bool { return b.t.IsZero() }

// AddDate returns the bound shifted by the given number of years, months and
// days, preserving its day/instant nature.
func (b Bound) AddDate(years, months, days int) Bound {
	return Bound{t: b.t.AddDate(years, months, days), day: b.day}
}

// Range is a query window. Zero bounds leave the corresponding side open.
type Range struct {
	From Bound
	To   Bound
}

// Between builds a Range from two bounds.
func Between(from, to Bound) Range { return Range{From: from, To: to} }

// ResolveFrom turns a "from" bound into a concrete timestamp: day bounds
// become 00:00:00 on that day. The result is zone-aware when zone support is
// enabled. Returns the zero time for an unset bound.
func (c Config) ResolveFrom(b Bound) time.Time {
	if b.IsZero() {
		return time.Time{}
	}
	if b.day {
		y, m, d := b.t.Date()
		return c.Aware(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	}
	return c.Aware(b.t)
}

// ResolveTo turns a "to" bound into a concrete timestamp: day bounds become
// 23:59:59 on that day, making the bound an inclusive end of day.
func (c Config) ResolveTo(b Bound) time.Time {
	if b.IsZero() {
		return time.Time{}
	}
	if b.day {
		y, m, d := b.t.Date()
		return c.Aware(time.Date(y, m, d, 23, 59, 59, 0, time.UTC))
	}
	return c.Aware(b.t)
}

// EndOfDay returns 23:59:59 on t's calendar day, in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// MaxFutureDate is the naive sentinel bounding otherwise infinite rules:
// January 1st, ten years from now.
func MaxFutureDate() time.Time {
	return time.Date(time.Now().Year()+10, time.January, 1, 0, 0, 0, 0, time.UTC)
}
