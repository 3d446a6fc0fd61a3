package store

import "errors"

// ErrInvalidInput is returned by Reserve when the viewer name or the
// property is blank after trimming.  Handlers translate it into 400.
var ErrInvalidInput = errors.New("invalid input")

// ErrSlotUnavailable is returned by Reserve when no free slot starts at
// the requested time: it is already booked, already past, or never
// existed.  No reservation is created.  Handlers translate it into 409.
var ErrSlotUnavailable = errors.New("slot unavailable")

// ErrReservationNotFound is returned by Cancel for an unknown id.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrInvalidTimezone is returned by New when the timezone name cannot be
// resolved.
var ErrInvalidTimezone = errors.New("invalid timezone")
