// Package queue defines the booking event payload exchanged over RabbitMQ
// and the consumer that records those events in the audit trail.
package queue

import "time"

// ViewingEvent is published after every booking and cancellation.  It
// carries enough detail for the audit consumer to record the change
// without asking the store.
type ViewingEvent struct {
    EventID       string    `json:"event_id"`
    Kind          string    `json:"kind"` // viewing.booked or viewing.cancelled
    ReservationID string    `json:"reservation_id"`
    SlotID        string    `json:"slot_id"`
    StartTime     time.Time `json:"start_time"`
    EndTime       time.Time `json:"end_time"`
    ViewerName    string    `json:"viewer_name"`
    Property      string    `json:"property"`
    Timezone      string    `json:"timezone"`
    OccurredAt    time.Time `json:"occurred_at"`
}
