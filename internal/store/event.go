package store

import (
	"context"
	"time"

	"github.com/iliyamo/viewing-scheduler/internal/model"
)

// EventKind names a state change of the store.
type EventKind string

const (
	EventViewingBooked    EventKind = "viewing.booked"
	EventViewingCancelled EventKind = "viewing.cancelled"
)

// Event describes a completed Reserve or Cancel.  Slot reflects the slot
// state right after the change.
type Event struct {
	Kind        EventKind
	Reservation model.Reservation
	Slot        model.TimeSlot
	At          time.Time
}

// Notifier receives store events after the change has been applied.  It
// must not block for long; the store does not look at the outcome.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
