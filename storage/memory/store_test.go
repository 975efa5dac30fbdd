package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventspan/eventspan/storage"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestEventCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	ev := &storage.EventRecord{Title: "Christmas"}
	require.NoError(t, s.CreateEvent(ctx, ev))
	assert.NotEqual(t, uuid.Nil, ev.ID)

	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Christmas", got.Title)

	_, err = s.GetEvent(ctx, uuid.New())
	var serr *storage.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, storage.ErrNotFound, serr.Type)

	require.NoError(t, s.DeleteEvent(ctx, ev.ID))
	_, err = s.GetEvent(ctx, ev.ID)
	assert.Error(t, err)
}

func TestCreateOccurrenceValidates(t *testing.T) {
	s := New()
	ctx := context.Background()

	ev := &storage.EventRecord{Title: "Broken"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	start := time.Date(2015, 1, 1, 9, 0, 0, 0, time.UTC)
	err := s.CreateOccurrence(ctx, &storage.OccurrenceRecord{
		EventID: ev.ID,
		Start:   start,
		End:     timePtr(start.Add(-time.Hour)),
	})
	var serr *storage.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, storage.ErrInvalidInput, serr.Type)
}

func TestListOccurrencesOrderAndFilter(t *testing.T) {
	s := New()
	ctx := context.Background()

	ev := &storage.EventRecord{Title: "Mixed"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	past := &storage.OccurrenceRecord{
		EventID: ev.ID,
		Start:   time.Date(2014, 1, 1, 7, 0, 0, 0, time.UTC),
		End:     timePtr(time.Date(2014, 1, 1, 8, 0, 0, 0, time.UTC)),
	}
	future := &storage.OccurrenceRecord{
		EventID: ev.ID,
		Start:   time.Date(2016, 1, 1, 7, 0, 0, 0, time.UTC),
		End:     timePtr(time.Date(2016, 1, 1, 8, 0, 0, 0, time.UTC)),
	}
	yearly := &storage.OccurrenceRecord{
		EventID: ev.ID,
		Start:   time.Date(2000, 12, 25, 7, 0, 0, 0, time.UTC),
		End:     timePtr(time.Date(2000, 12, 25, 22, 0, 0, 0, time.UTC)),
		Repeat:  "RRULE:FREQ=YEARLY",
	}
	for _, rec := range []*storage.OccurrenceRecord{past, future, yearly} {
		require.NoError(t, s.CreateOccurrence(ctx, rec))
	}

	all, err := s.ListOccurrences(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by start.
	assert.Equal(t, yearly.ID, all[0].ID)
	assert.Equal(t, past.ID, all[1].ID)
	assert.Equal(t, future.ID, all[2].ID)

	// The approximate predicate keeps the repeater and the future record.
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	filtered, err := s.ListOccurrences(ctx, &storage.RangeFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, yearly.ID, filtered[0].ID)
	assert.Equal(t, future.ID, filtered[1].ID)
}

func TestListEventOccurrences(t *testing.T) {
	s := New()
	ctx := context.Background()

	ev1 := &storage.EventRecord{Title: "One"}
	ev2 := &storage.EventRecord{Title: "Two"}
	require.NoError(t, s.CreateEvent(ctx, ev1))
	require.NoError(t, s.CreateEvent(ctx, ev2))

	require.NoError(t, s.CreateOccurrence(ctx, &storage.OccurrenceRecord{
		EventID: ev1.ID,
		Start:   time.Date(2015, 1, 3, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.CreateOccurrence(ctx, &storage.OccurrenceRecord{
		EventID: ev2.ID,
		Start:   time.Date(2015, 1, 4, 9, 0, 0, 0, time.UTC),
	}))

	recs, err := s.ListEventOccurrences(ctx, ev1.ID, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ev1.ID, recs[0].EventID)
}

func TestUpdateAndDeleteOccurrence(t *testing.T) {
	s := New()
	ctx := context.Background()

	ev := &storage.EventRecord{Title: "Edit me"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	rec := &storage.OccurrenceRecord{
		EventID: ev.ID,
		Start:   time.Date(2015, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateOccurrence(ctx, rec))

	rec.Repeat = "RRULE:FREQ=WEEKLY"
	require.NoError(t, s.UpdateOccurrence(ctx, rec))

	got, err := s.GetOccurrence(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "RRULE:FREQ=WEEKLY", got.Repeat)

	require.NoError(t, s.DeleteOccurrence(ctx, rec.ID))
	_, err = s.GetOccurrence(ctx, rec.ID)
	assert.Error(t, err)
}

func TestMigrateIntegerRepeat(t *testing.T) {
	s := New()
	s.Choices = nil // legacy integer codes predate rule validation
	ctx := context.Background()

	ev := &storage.EventRecord{Title: "Legacy"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	mk := func(repeat string) *storage.OccurrenceRecord {
		rec := &storage.OccurrenceRecord{
			EventID: ev.ID,
			Start:   time.Date(2015, 1, 1, 7, 0, 0, 0, time.UTC),
			Repeat:  repeat,
		}
		require.NoError(t, s.CreateOccurrence(ctx, rec))
		return rec
	}

	yearly := mk("0")
	monthly := mk("1")
	weekly := mk("2")
	daily := mk("3")
	modern := mk("RRULE:FREQ=WEEKLY")
	exdates := mk("EXDATE:20150201T070000")
	plain := mk("")

	changed, err := s.MigrateIntegerRepeat(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), changed)

	want := map[uuid.UUID]string{
		yearly.ID:  "RRULE:FREQ=YEARLY",
		monthly.ID: "RRULE:FREQ=MONTHLY",
		weekly.ID:  "RRULE:FREQ=WEEKLY",
		daily.ID:   "RRULE:FREQ=DAILY",
		modern.ID:  "RRULE:FREQ=WEEKLY",
		exdates.ID: "EXDATE:20150201T070000",
		plain.ID:   "",
	}
	for id, repeat := range want {
		got, err := s.GetOccurrence(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, repeat, got.Repeat)
	}

	// Running the migration again changes nothing.
	changed, err = s.MigrateIntegerRepeat(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
