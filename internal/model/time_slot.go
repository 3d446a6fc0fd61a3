package model

import "time"

// TimeSlot is a bookable half-hour interval in the viewing schedule.
// Slots are created once when the store is initialised and are never
// removed; only their availability changes.
//
// Fields:
//  ID            - unique identifier, stable for the slot's lifetime.
//  StartTime     - absolute start instant.
//  EndTime       - StartTime plus the fixed slot duration.
//  Available     - false once a viewing has been booked into the slot.
//  ReservationID - id of the viewing occupying the slot; empty iff Available.
type TimeSlot struct {
    ID            string    `json:"id"`
    StartTime     time.Time `json:"start_time"`
    EndTime       time.Time `json:"end_time"`
    Available     bool      `json:"available"`
    ReservationID string    `json:"reservation_id,omitempty"`
}
