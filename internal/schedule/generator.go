package schedule

import (
	"time"

	"github.com/iliyamo/viewing-scheduler/internal/model"
)

// GenerateDaySlots returns the bookable slots for the calendar day that
// contains date, as seen in loc.  Candidates start at OpenHour:00 and
// advance by SlotDuration; generation stops at the first slot whose end
// would fall after CloseHour:00.  When the day is today (relative to now,
// in loc) any slot starting at or before now is left out.
func (p Policy) GenerateDaySlots(date time.Time, loc *time.Location, now time.Time, newID IDFunc) []model.TimeSlot {
	if p.SlotDuration <= 0 {
		return nil
	}
	if newID == nil {
		newID = NewUUID
	}

	y, m, d := date.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	today := y == ny && m == nm && d == nd

	closing := time.Date(y, m, d, p.CloseHour, 0, 0, 0, loc)
	slots := make([]model.TimeSlot, 0, p.SlotsPerDay())

	for offset := time.Duration(0); ; offset += p.SlotDuration {
		minutes := p.OpenHour*60 + int(offset/time.Minute)
		if minutes >= p.CloseHour*60 {
			break
		}
		start := time.Date(y, m, d, 0, minutes, 0, 0, loc)
		if start.Hour()*60+start.Minute() != minutes {
			// wall time skipped by a DST transition
			continue
		}
		end := start.Add(p.SlotDuration)

		// hard stop: the last slot must end by closing time
		if end.After(closing) {
			break
		}
		if today && !start.After(now) {
			continue
		}

		slots = append(slots, model.TimeSlot{
			ID:        newID(),
			StartTime: start,
			EndTime:   end,
			Available: true,
		})
	}
	return slots
}

// IsBusinessWeekday reports whether date falls on Monday to Friday in loc.
func IsBusinessWeekday(date time.Time, loc *time.Location) bool {
	switch date.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// NextWeekdaySlots generates slots for the next n weekdays, starting with
// the day containing now.  A weekday with no remaining slots still counts
// towards n.
func (p Policy) NextWeekdaySlots(n int, loc *time.Location, now time.Time, newID IDFunc) []model.TimeSlot {
	y, m, d := now.In(loc).Date()
	var slots []model.TimeSlot
	for i, added := 0, 0; added < n; i++ {
		// noon keeps the day stable across DST shifts
		day := time.Date(y, m, d+i, 12, 0, 0, 0, loc)
		if !IsBusinessWeekday(day, loc) {
			continue
		}
		slots = append(slots, p.GenerateDaySlots(day, loc, now, newID)...)
		added++
	}
	return slots
}
