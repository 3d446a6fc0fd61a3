package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/viewing-scheduler/internal/model"
	"github.com/iliyamo/viewing-scheduler/internal/schedule"
)

func sequence(prefix string) schedule.IDFunc {
	var n int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&n, 1))
	}
}

// newYorkMonday is Monday 2024-03-04 08:00 in New York.
func newYorkMonday(t *testing.T) (*time.Location, time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc, time.Date(2024, 3, 4, 8, 0, 0, 0, loc)
}

// movingClock is a Clock the test can advance.
type movingClock struct{ now time.Time }

func (c *movingClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	_, now := newYorkMonday(t)
	if opts.Timezone == "" {
		opts.Timezone = "America/New_York"
	}
	if opts.Clock == nil {
		opts.Clock = FixedClock(now)
	}
	if opts.NewID == nil {
		opts.NewID = sequence("id")
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func slotsOn(slots []model.TimeSlot, loc *time.Location, y int, m time.Month, d int) []model.TimeSlot {
	var out []model.TimeSlot
	for _, s := range slots {
		sy, sm, sd := s.StartTime.In(loc).Date()
		if sy == y && sm == m && sd == d {
			out = append(out, s)
		}
	}
	return out
}

// assertDuality checks that booked slots and reservations reference each
// other one to one.
func assertDuality(t *testing.T, s *Store) {
	t.Helper()
	byID := map[string]model.Reservation{}
	for _, r := range s.ListReservations() {
		byID[r.ID] = r
	}
	booked := 0
	for _, slot := range s.ListSlots() {
		if slot.Available {
			assert.Empty(t, slot.ReservationID)
			continue
		}
		booked++
		r, ok := byID[slot.ReservationID]
		if assert.True(t, ok, "slot %s points at unknown reservation", slot.ID) {
			assert.True(t, r.StartTime.Equal(slot.StartTime))
		}
	}
	assert.Equal(t, len(byID), booked)
}

func TestNewInvalidTimezone(t *testing.T) {
	_, err := New(Options{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTimezone))
}

func TestNewDefaults(t *testing.T) {
	s := newTestStore(t, Options{})
	assert.Equal(t, "America/New_York", s.Location().String())
	assert.Equal(t, schedule.DefaultPolicy, s.Policy())
	st := s.Stats()
	assert.Equal(t, Stats{Slots: 7 * 18, Available: 7 * 18}, st)
	assert.Empty(t, s.ListReservations())
}

func TestEndToEndNewYork(t *testing.T) {
	loc, _ := newYorkMonday(t)
	s := newTestStore(t, Options{})
	ctx := context.Background()

	monday := slotsOn(s.ListAvailableSlots(), loc, 2024, 3, 4)
	require.Len(t, monday, 18)
	assert.Equal(t, 9, monday[0].StartTime.In(loc).Hour())

	res, err := s.Reserve(ctx, monday[0].StartTime, "Jane Doe", "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.ViewerName)
	assert.Equal(t, "123 Main St", res.Property)
	assert.True(t, res.StartTime.Equal(monday[0].StartTime))

	assert.Len(t, slotsOn(s.ListAvailableSlots(), loc, 2024, 3, 4), 17)
	require.Len(t, s.ListReservations(), 1)
	assertDuality(t, s)

	cancelled, err := s.Cancel(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res, cancelled)

	assert.Len(t, slotsOn(s.ListAvailableSlots(), loc, 2024, 3, 4), 18)
	assert.Empty(t, s.ListReservations())
	assertDuality(t, s)
}

func TestReserveTrimsAndValidates(t *testing.T) {
	s := newTestStore(t, Options{})
	start := s.ListAvailableSlots()[0].StartTime

	cases := []struct{ name, viewer, property string }{
		{"empty viewer", "", "Flat 2"},
		{"blank viewer", "   ", "Flat 2"},
		{"blank property", "Jane", "\t\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Reserve(context.Background(), start, tc.viewer, tc.property)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, s.ListReservations())

	res, err := s.Reserve(context.Background(), start, "  Jane  ", " Flat 2 ")
	require.NoError(t, err)
	assert.Equal(t, "Jane", res.ViewerName)
	assert.Equal(t, "Flat 2", res.Property)
}

func TestReserveRejectsDoubleBooking(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	start := s.ListAvailableSlots()[3].StartTime

	_, err := s.Reserve(ctx, start, "A", "B")
	require.NoError(t, err)
	_, err = s.Reserve(ctx, start, "C", "D")
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	count := 0
	for _, r := range s.ListReservations() {
		if r.StartTime.Equal(start) {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assertDuality(t, s)
}

func TestReserveUnknownSlot(t *testing.T) {
	loc, now := newYorkMonday(t)
	s := newTestStore(t, Options{})
	ctx := context.Background()

	cases := map[string]time.Time{
		"past":        now.Add(-time.Hour),
		"off grid":    time.Date(2024, 3, 4, 9, 15, 0, 0, loc),
		"after hours": time.Date(2024, 3, 4, 18, 0, 0, 0, loc),
		"weekend":     time.Date(2024, 3, 9, 10, 0, 0, 0, loc),
	}
	for name, at := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Reserve(ctx, at, "A", "B")
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		})
	}
	assert.Empty(t, s.ListReservations())
}

func TestReserveRejectsSlotThatStartedAfterInit(t *testing.T) {
	loc, now := newYorkMonday(t)
	clock := &movingClock{now: now}
	s := newTestStore(t, Options{Clock: clock})
	ctx := context.Background()
	before := s.Stats()

	clock.now = time.Date(2024, 3, 4, 13, 0, 0, 0, loc)
	for _, at := range []time.Time{
		time.Date(2024, 3, 4, 9, 0, 0, 0, loc),
		time.Date(2024, 3, 4, 12, 30, 0, 0, loc),
		time.Date(2024, 3, 4, 13, 0, 0, 0, loc),
	} {
		_, err := s.Reserve(ctx, at, "A", "B")
		assert.ErrorIs(t, err, ErrSlotUnavailable, at.String())
	}
	assert.Equal(t, before, s.Stats())
	assert.Empty(t, s.ListReservations())

	res, err := s.Reserve(ctx, time.Date(2024, 3, 4, 13, 30, 0, 0, loc), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, clock.now, res.CreatedAt)
	assertDuality(t, s)
}

func TestReserveMatchesInstantAcrossZones(t *testing.T) {
	loc, _ := newYorkMonday(t)
	s := newTestStore(t, Options{})
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)

	res, err := s.Reserve(context.Background(), start.UTC(), "A", "B")
	require.NoError(t, err)
	assert.True(t, res.StartTime.Equal(start))
}

func TestCancelUnknownReservation(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCancelTwice(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	res, err := s.Reserve(ctx, s.ListAvailableSlots()[0].StartTime, "A", "B")
	require.NoError(t, err)

	_, err = s.Cancel(ctx, res.ID)
	require.NoError(t, err)
	_, err = s.Cancel(ctx, res.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestSlotCanBeRebookedAfterCancel(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	start := s.ListAvailableSlots()[5].StartTime

	first, err := s.Reserve(ctx, start, "A", "B")
	require.NoError(t, err)
	_, err = s.Cancel(ctx, first.ID)
	require.NoError(t, err)

	second, err := s.Reserve(ctx, start, "C", "D")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assertDuality(t, s)
}

func TestListReservationsSortedByStart(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	free := s.ListAvailableSlots()

	for _, i := range []int{10, 2, 7} {
		_, err := s.Reserve(ctx, free[i].StartTime, "A", "B")
		require.NoError(t, err)
	}
	list := s.ListReservations()
	require.Len(t, list, 3)
	assert.True(t, list[0].StartTime.Equal(free[2].StartTime))
	assert.True(t, list[1].StartTime.Equal(free[7].StartTime))
	assert.True(t, list[2].StartTime.Equal(free[10].StartTime))
}

func TestListsReturnCopies(t *testing.T) {
	s := newTestStore(t, Options{})
	slots := s.ListAvailableSlots()
	slots[0].Available = false
	assert.True(t, s.ListAvailableSlots()[0].Available)
}

func TestReserveHonoursCancelledContext(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Reserve(ctx, s.ListAvailableSlots()[0].StartTime, "A", "B")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.ListReservations())
}

func TestNotifierReceivesEvents(t *testing.T) {
	var events []Event
	s := newTestStore(t, Options{Notifier: NotifierFunc(func(_ context.Context, ev Event) {
		events = append(events, ev)
	})})
	ctx := context.Background()

	res, err := s.Reserve(ctx, s.ListAvailableSlots()[0].StartTime, "A", "B")
	require.NoError(t, err)
	_, err = s.Cancel(ctx, res.ID)
	require.NoError(t, err)
	_, err = s.Cancel(ctx, res.ID)
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, EventViewingBooked, events[0].Kind)
	assert.False(t, events[0].Slot.Available)
	assert.Equal(t, res.ID, events[0].Slot.ReservationID)
	assert.Equal(t, EventViewingCancelled, events[1].Kind)
	assert.True(t, events[1].Slot.Available)
	assert.Equal(t, res.ID, events[1].Reservation.ID)
}

func TestConcurrentReserveBooksOnce(t *testing.T) {
	s := newTestStore(t, Options{})
	start := s.ListAvailableSlots()[0].StartTime

	const workers = 32
	var (
		wg      sync.WaitGroup
		success int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Reserve(context.Background(), start, fmt.Sprintf("viewer %d", i), "Flat 1")
			if err == nil {
				atomic.AddInt64(&success, 1)
				return
			}
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), success)
	assert.Len(t, s.ListReservations(), 1)
	assertDuality(t, s)
}

func TestRandomOperationsKeepDuality(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	free := s.ListAvailableSlots()

	var ids []string
	for step := 0; step < 200; step++ {
		if step%3 == 2 && len(ids) > 0 {
			id := ids[step%len(ids)]
			_, err := s.Cancel(ctx, id)
			require.NoError(t, err)
			ids = append(ids[:step%len(ids)], ids[step%len(ids)+1:]...)
		} else {
			slot := free[(step*7)%len(free)]
			res, err := s.Reserve(ctx, slot.StartTime, "A", "B")
			if err == nil {
				ids = append(ids, res.ID)
			} else {
				require.ErrorIs(t, err, ErrSlotUnavailable)
			}
		}
		assertDuality(t, s)
	}
}
