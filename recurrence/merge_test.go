package recurrence

import (
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventspan/eventspan/timeutil"
)

func seqOf(occs ...Occurrence) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		for _, occ := range occs {
			if !yield(occ) {
				return
			}
		}
	}
}

func at(day, hour int) Occurrence {
	return Occurrence{Start: time.Date(2015, 1, day, hour, 0, 0, 0, time.UTC)}
}

func TestMergeOrdering(t *testing.T) {
	merged := collect(t, Merge([]iter.Seq[Occurrence]{
		seqOf(at(1, 9), at(3, 9), at(5, 9)),
		seqOf(at(2, 9), at(4, 9)),
	}, 0))

	require.Len(t, merged, 5)
	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].Start.Before(merged[i-1].Start))
	}
}

func TestMergeLimit(t *testing.T) {
	merged := collect(t, Merge([]iter.Seq[Occurrence]{
		seqOf(at(1, 9), at(3, 9)),
		seqOf(at(2, 9), at(4, 9)),
	}, 3))
	assert.Len(t, merged, 3)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, collect(t, Merge(nil, 0)))
	assert.Empty(t, collect(t, Merge([]iter.Seq[Occurrence]{seqOf(), seqOf()}, 0)))
}

func TestMergeTieBreakIsRegistrationOrder(t *testing.T) {
	a := at(1, 9)
	a.Data = "first"
	b := at(1, 9)
	b.Data = "second"

	merged := collect(t, Merge([]iter.Seq[Occurrence]{seqOf(a), seqOf(b)}, 0))
	require.Len(t, merged, 2)
	assert.Equal(t, "first", merged[0].Data)
	assert.Equal(t, "second", merged[1].Data)
}

func TestMergeEarlyTermination(t *testing.T) {
	// An infinite input must not be drained when the consumer stops early.
	infinite := func(yield func(Occurrence) bool) {
		day := time.Date(2015, 1, 1, 9, 0, 0, 0, time.UTC)
		for {
			if !yield(Occurrence{Start: day}) {
				return
			}
			day = day.AddDate(0, 0, 1)
		}
	}

	var got []Occurrence
	for occ := range Merge([]iter.Seq[Occurrence]{infinite}, 0) {
		got = append(got, occ)
		if len(got) == 4 {
			break
		}
	}
	assert.Len(t, got, 4)
}

func TestMergeExpandedWeekendSeries(t *testing.T) {
	e := NewExpander()

	saturday := Series{
		Start:  time.Date(2015, 1, 3, 9, 0, 0, 0, time.UTC),
		End:    timePtr(time.Date(2015, 1, 3, 10, 0, 0, 0, time.UTC)),
		Repeat: "RRULE:FREQ=WEEKLY",
	}
	sunday := Series{
		Start:  time.Date(2015, 1, 4, 9, 0, 0, 0, time.UTC),
		End:    timePtr(time.Date(2015, 1, 4, 10, 0, 0, 0, time.UTC)),
		Repeat: "RRULE:FREQ=WEEKLY",
	}

	// Two-day windows sliding through seven weeks.
	for days := 1; days < 50; days++ {
		from := timeutil.OnDay(2015, 1, 1).AddDate(0, 0, days)
		win := timeutil.Range{From: from, To: from.AddDate(0, 0, 1)}

		satSeq, err := e.Expand(saturday, win, 0)
		require.NoError(t, err)
		sunSeq, err := e.Expand(sunday, win, 0)
		require.NoError(t, err)

		merged := collect(t, Merge([]iter.Seq[Occurrence]{satSeq, sunSeq}, 0))

		weekday := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days).Weekday()
		var want int
		switch weekday {
		case time.Saturday:
			want = 2 // whole weekend
		case time.Friday, time.Sunday:
			want = 1 // one weekend day
		default:
			want = 0
		}
		assert.Len(t, merged, want, "offset %d (%s)", days, weekday)

		for i := 1; i < len(merged); i++ {
			assert.True(t, merged[i-1].Start.Before(merged[i].Start))
		}
	}
}
