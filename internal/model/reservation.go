package model

import "time"

// Reservation records a booked viewing.  Its StartTime always equals the
// StartTime of exactly one slot in the store, and that slot's
// ReservationID points back at the reservation.
//
// Fields:
//  ID         - unique identifier assigned at creation.
//  StartTime  - start instant of the booked slot.
//  ViewerName - who is attending the viewing (trimmed, non-empty).
//  Property   - what is being viewed (trimmed, non-empty).
//  CreatedAt  - when the booking was made.
type Reservation struct {
    ID         string    `json:"id"`
    StartTime  time.Time `json:"start_time"`
    ViewerName string    `json:"viewer_name"`
    Property   string    `json:"property"`
    CreatedAt  time.Time `json:"created_at"`
}
