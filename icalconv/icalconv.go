// Package icalconv moves records in and out of iCalendar form: VEVENTs
// become event/occurrence record pairs, and expanded occurrences can be
// written back out as a VCALENDAR.
package icalconv

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/eventspan/eventspan/recurrence"
	"github.com/eventspan/eventspan/storage"
)

// Imported is one VEVENT translated into the record model.
type Imported struct {
	Event      *storage.EventRecord
	Occurrence *storage.OccurrenceRecord
}

// Decode reads a VCALENDAR stream and translates each VEVENT into an event
// record plus one occurrence record. RRULE and EXDATE properties are carried
// into the occurrence's repeat text; components without a DTSTART are
// skipped.
func Decode(r io.Reader) ([]Imported, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}
	return FromCalendar(cal)
}

// FromCalendar translates the VEVENTs of an already-parsed calendar.
func FromCalendar(cal *ical.Calendar) ([]Imported, error) {
	var out []Imported
	for _, ev := range cal.Events() {
		imp, ok, err := fromEvent(ev)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, imp)
		}
	}
	return out, nil
}

func fromEvent(ev ical.Event) (Imported, bool, error) {
	start, err := ev.Props.DateTime(ical.PropDateTimeStart, nil)
	if err != nil || start.IsZero() {
		// No usable DTSTART: nothing to anchor an occurrence on.
		return Imported{}, false, nil
	}

	record := &storage.EventRecord{
		ID:    uuid.New(),
		Title: propText(ev.Props, ical.PropSummary),
	}

	occ := &storage.OccurrenceRecord{
		ID:      uuid.New(),
		EventID: record.ID,
		Start:   start,
		Repeat:  repeatText(ev.Component),
		Label:   propText(ev.Props, ical.PropDescription),
	}

	if end, err := ev.Props.DateTime(ical.PropDateTimeEnd, nil); err == nil && end.After(start) {
		occ.End = &end
	}

	return Imported{Event: record, Occurrence: occ}, true, nil
}

// repeatText rebuilds the stored repeat value from a component's RRULE and
// EXDATE properties, in the same multi-line text form the rule parser
// consumes.
func repeatText(comp *ical.Component) string {
	var lines []string

	for _, prop := range comp.Props[ical.PropExceptionDates] {
		if prop.Value != "" {
			lines = append(lines, "EXDATE:"+prop.Value)
		}
	}
	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		lines = append(lines, "RRULE:"+prop.Value)
	}

	return strings.Join(lines, "\n")
}

func propText(props ical.Props, name string) string {
	if prop := props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

// EncodeOccurrences writes expanded occurrences as a flat VCALENDAR of
// single VEVENTs, one per occurrence. summary labels every emitted VEVENT.
func EncodeOccurrences(occs []recurrence.Occurrence, summary string) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//eventspan//Occurrence Export//EN")

	now := time.Now()
	for _, occ := range occs {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, uuid.NewString())
		ev.Props.SetDateTime(ical.PropDateTimeStamp, now)
		ev.Props.SetDateTime(ical.PropDateTimeStart, occ.Start)
		if occ.End.After(occ.Start) {
			ev.Props.SetDateTime(ical.PropDateTimeEnd, occ.End)
		}
		if summary != "" {
			ev.Props.SetText(ical.PropSummary, summary)
		}
		cal.Children = append(cal.Children, ev.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}
