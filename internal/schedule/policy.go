// Package schedule turns a business-hours policy and a timezone into the
// concrete half-hour viewing slots offered by the store.  Everything in
// this package is a pure computation; the only inputs are the policy, the
// location, a reference "now" and an id generator.
package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Policy describes the wall-clock business hours in which viewings can be
// booked.  OpenHour and CloseHour are hours of the day in the schedule's
// timezone; CloseHour is exclusive.
type Policy struct {
	OpenHour     int
	CloseHour    int
	SlotDuration time.Duration
}

// DefaultPolicy offers 30 minute slots from 09:00 to 18:00.
var DefaultPolicy = Policy{
	OpenHour:     9,
	CloseHour:    18,
	SlotDuration: 30 * time.Minute,
}

// DefaultDays is the number of weekdays covered by the booking window.
const DefaultDays = 7

// SlotsPerDay is the number of slots a full business day yields.
func (p Policy) SlotsPerDay() int {
	if p.SlotDuration <= 0 {
		return 0
	}
	window := time.Duration(p.CloseHour-p.OpenHour) * time.Hour
	return int(window / p.SlotDuration)
}

// IDFunc produces unique slot identifiers.
type IDFunc func() string

// NewUUID is the default IDFunc.
func NewUUID() string { return uuid.NewString() }
