package schedule

import (
	"time"

	"github.com/iliyamo/viewing-scheduler/internal/model"
)

// DateLayout is the key format used when grouping slots by day.
const DateLayout = "2006-01-02"

// DaySlots holds the slots that start on one wall-clock date.
type DaySlots struct {
	Date    string           `json:"date"`
	Weekday string           `json:"weekday"`
	Slots   []model.TimeSlot `json:"slots"`
}

// GroupByDate buckets slots by the date their start falls on in loc.
// Input order is preserved, so chronological input gives chronological
// days.
func GroupByDate(slots []model.TimeSlot, loc *time.Location) []DaySlots {
	var days []DaySlots
	index := make(map[string]int)
	for _, s := range slots {
		local := s.StartTime.In(loc)
		key := local.Format(DateLayout)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, DaySlots{Date: key, Weekday: local.Weekday().String()})
		}
		days[i].Slots = append(days[i].Slots, s)
	}
	return days
}
