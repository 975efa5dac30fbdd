package icalconv

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventspan/eventspan/recurrence"
	"github.com/eventspan/eventspan/timeutil"
)

const sampleCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:weekly-sync
DTSTAMP:20160101T000000Z
DTSTART:20160104T100000Z
DTEND:20160104T103000Z
SUMMARY:Weekly sync
DESCRIPTION:Planning call
RRULE:FREQ=WEEKLY
EXDATE:20160111T100000Z
END:VEVENT
BEGIN:VEVENT
UID:one-off
DTSTAMP:20160101T000000Z
DTSTART:20160301T180000Z
SUMMARY:Launch party
END:VEVENT
BEGIN:VEVENT
UID:no-start
DTSTAMP:20160101T000000Z
SUMMARY:Broken
END:VEVENT
END:VCALENDAR
`

func TestDecode(t *testing.T) {
	imported, err := Decode(strings.NewReader(sampleCalendar))
	require.NoError(t, err)

	// The component without DTSTART is skipped.
	require.Len(t, imported, 2)

	sync := imported[0]
	assert.Equal(t, "Weekly sync", sync.Event.Title)
	assert.Equal(t, sync.Event.ID, sync.Occurrence.EventID)
	assert.True(t, sync.Occurrence.Start.Equal(time.Date(2016, 1, 4, 10, 0, 0, 0, time.UTC)))
	require.NotNil(t, sync.Occurrence.End)
	assert.True(t, sync.Occurrence.End.Equal(time.Date(2016, 1, 4, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "Planning call", sync.Occurrence.Label)
	assert.Equal(t, "EXDATE:20160111T100000Z\nRRULE:FREQ=WEEKLY", sync.Occurrence.Repeat)

	party := imported[1]
	assert.Equal(t, "Launch party", party.Event.Title)
	assert.Nil(t, party.Occurrence.End)
	assert.Empty(t, party.Occurrence.Repeat)
}

func TestDecodedRepeatExpands(t *testing.T) {
	imported, err := Decode(strings.NewReader(sampleCalendar))
	require.NoError(t, err)
	require.NotEmpty(t, imported)

	e := recurrence.NewExpander()
	defer e.Close()

	win := timeutil.Between(timeutil.OnDay(2016, 1, 1), timeutil.OnDay(2016, 1, 31))
	seq, err := e.Expand(imported[0].Occurrence.Series(), win, 5)
	require.NoError(t, err)

	var starts []time.Time
	for occ := range seq {
		starts = append(starts, occ.Start)
	}

	// Jan 11 is excluded by the EXDATE.
	require.Len(t, starts, 3)
	assert.True(t, starts[0].Equal(time.Date(2016, 1, 4, 10, 0, 0, 0, time.UTC)))
	assert.True(t, starts[1].Equal(time.Date(2016, 1, 18, 10, 0, 0, 0, time.UTC)))
	assert.True(t, starts[2].Equal(time.Date(2016, 1, 25, 10, 0, 0, 0, time.UTC)))
}

func TestEncodeOccurrences(t *testing.T) {
	occs := []recurrence.Occurrence{
		{
			Start: time.Date(2016, 1, 4, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2016, 1, 4, 10, 30, 0, 0, time.UTC),
		},
		{
			Start: time.Date(2016, 1, 18, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2016, 1, 18, 10, 0, 0, 0, time.UTC),
		},
	}

	out, err := EncodeOccurrences(occs, "Weekly sync")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "SUMMARY:Weekly sync")
	assert.Contains(t, out, "DTSTART:20160104T100000Z")
	// Zero-length occurrences get no DTEND.
	assert.Equal(t, 1, strings.Count(out, "DTEND:"))

	// The export must itself be a valid calendar.
	imported, err := Decode(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.True(t, imported[0].Occurrence.Start.Equal(occs[0].Start))
}
