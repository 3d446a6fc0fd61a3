// Package store holds the viewing schedule: the slot inventory produced
// once by the schedule generator and the list of booked viewings.  It
// keeps every reservation tied to exactly one slot and every slot tied to
// at most one reservation.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/model"
	"github.com/iliyamo/viewing-scheduler/internal/schedule"
)

// Options configures New.  Zero values fall back to defaults: the local
// timezone, the real clock, uuid ids, the default policy and seven
// weekdays.
type Options struct {
	Timezone string
	Days     int
	Policy   schedule.Policy
	Clock    Clock
	NewID    schedule.IDFunc
	Notifier Notifier
	Logger   *zap.Logger
}

// Store is safe for concurrent use.  Reserve and Cancel are serialised so
// a slot can never be booked twice.
type Store struct {
	mu           sync.RWMutex
	loc          *time.Location
	policy       schedule.Policy
	slots        []model.TimeSlot
	slotByStart  map[int64]int
	reservations []model.Reservation

	clock    Clock
	newID    schedule.IDFunc
	notifier Notifier
	logger   *zap.Logger
}

// Stats summarises the inventory.
type Stats struct {
	Slots        int `json:"slots"`
	Available    int `json:"available"`
	Booked       int `json:"booked"`
	Reservations int `json:"reservations"`
}

// New resolves the timezone and fills the inventory with the slots of the
// next opts.Days weekdays, starting today.  The inventory is never
// regenerated afterwards.
func New(opts Options) (*Store, error) {
	loc := time.Local
	if opts.Timezone != "" {
		l, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, opts.Timezone, err)
		}
		loc = l
	}
	if opts.Days <= 0 {
		opts.Days = schedule.DefaultDays
	}
	if opts.Policy.SlotDuration <= 0 {
		opts.Policy = schedule.DefaultPolicy
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.NewID == nil {
		opts.NewID = schedule.NewUUID
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	now := opts.Clock.Now()
	slots := opts.Policy.NextWeekdaySlots(opts.Days, loc, now, opts.NewID)
	index := make(map[int64]int, len(slots))
	for i, s := range slots {
		index[s.StartTime.UnixNano()] = i
	}

	s := &Store{
		loc:         loc,
		policy:      opts.Policy,
		slots:       slots,
		slotByStart: index,
		clock:       opts.Clock,
		newID:       opts.NewID,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
	}
	s.logger.Info("viewing schedule initialised",
		zap.String("timezone", loc.String()),
		zap.Int("weekdays", opts.Days),
		zap.Int("slots", len(slots)),
		zap.Time("now", now),
	)
	return s, nil
}

// Location is the timezone the schedule was generated in.
func (s *Store) Location() *time.Location { return s.loc }

// Policy is the business-hours policy the schedule was generated with.
func (s *Store) Policy() schedule.Policy { return s.policy }

// ListSlots returns a copy of the full inventory in chronological order.
func (s *Store) ListSlots() []model.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TimeSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// ListAvailableSlots returns the free slots in chronological order.
func (s *Store) ListAvailableSlots() []model.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TimeSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.Available {
			out = append(out, slot)
		}
	}
	return out
}

// ListReservations returns all reservations ordered by start time.
func (s *Store) ListReservations() []model.Reservation {
	s.mu.RLock()
	out := make([]model.Reservation, len(s.reservations))
	copy(out, s.reservations)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Stats counts slots and reservations.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Slots: len(s.slots), Reservations: len(s.reservations)}
	for _, slot := range s.slots {
		if slot.Available {
			st.Available++
		} else {
			st.Booked++
		}
	}
	return st
}

// Reserve books the free slot starting at startTime.  Blank names fail
// with ErrInvalidInput.  A slot that is missing, already booked or has
// already started fails with ErrSlotUnavailable and leaves the store
// untouched.  ctx is only checked on entry: once the lock is held the
// booking commits even if ctx is cancelled meanwhile.
func (s *Store) Reserve(ctx context.Context, startTime time.Time, viewerName, property string) (model.Reservation, error) {
	if ctx.Err() != nil {
		return model.Reservation{}, ctx.Err()
	}
	viewerName = strings.TrimSpace(viewerName)
	property = strings.TrimSpace(property)
	if viewerName == "" || property == "" {
		return model.Reservation{}, fmt.Errorf("%w: viewer name and property are required", ErrInvalidInput)
	}

	s.mu.Lock()
	now := s.clock.Now()
	i, ok := s.slotByStart[startTime.UnixNano()]
	if !ok || !s.slots[i].Available || !s.slots[i].StartTime.After(now) {
		s.mu.Unlock()
		return model.Reservation{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, startTime.In(s.loc).Format(time.RFC3339))
	}
	res := model.Reservation{
		ID:         s.newID(),
		StartTime:  s.slots[i].StartTime,
		ViewerName: viewerName,
		Property:   property,
		CreatedAt:  now,
	}
	s.slots[i].Available = false
	s.slots[i].ReservationID = res.ID
	s.reservations = append(s.reservations, res)
	slot := s.slots[i]
	s.mu.Unlock()

	s.logger.Info("viewing booked",
		zap.String("reservation_id", res.ID),
		zap.String("slot_id", slot.ID),
		zap.Time("start_time", res.StartTime),
	)
	s.notifier.Notify(ctx, Event{Kind: EventViewingBooked, Reservation: res, Slot: slot, At: now})
	return res, nil
}

// Cancel removes the reservation and frees its slot.  An unknown id fails
// with ErrReservationNotFound.  Like Reserve, ctx is only checked on entry.
func (s *Store) Cancel(ctx context.Context, reservationID string) (model.Reservation, error) {
	if ctx.Err() != nil {
		return model.Reservation{}, ctx.Err()
	}

	s.mu.Lock()
	pos := -1
	for i, r := range s.reservations {
		if r.ID == reservationID {
			pos = i
			break
		}
	}
	if pos < 0 {
		s.mu.Unlock()
		return model.Reservation{}, fmt.Errorf("%w: %s", ErrReservationNotFound, reservationID)
	}
	res := s.reservations[pos]
	s.reservations = append(s.reservations[:pos], s.reservations[pos+1:]...)

	var slot model.TimeSlot
	if i, ok := s.slotByStart[res.StartTime.UnixNano()]; ok && s.slots[i].ReservationID == res.ID {
		s.slots[i].Available = true
		s.slots[i].ReservationID = ""
		slot = s.slots[i]
	}
	now := s.clock.Now()
	s.mu.Unlock()

	s.logger.Info("viewing cancelled",
		zap.String("reservation_id", res.ID),
		zap.String("slot_id", slot.ID),
		zap.Time("start_time", res.StartTime),
	)
	s.notifier.Notify(ctx, Event{Kind: EventViewingCancelled, Reservation: res, Slot: slot, At: now})
	return res, nil
}
