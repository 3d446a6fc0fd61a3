package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/model"
	"github.com/iliyamo/viewing-scheduler/internal/schedule"
	"github.com/iliyamo/viewing-scheduler/internal/store"
)

// ViewingStore is the booking store as seen by the HTTP layer.
type ViewingStore interface {
	ListAvailableSlots() []model.TimeSlot
	ListReservations() []model.Reservation
	Reserve(ctx context.Context, startTime time.Time, viewerName, property string) (model.Reservation, error)
	Cancel(ctx context.Context, reservationID string) (model.Reservation, error)
	Stats() store.Stats
	Location() *time.Location
	Policy() schedule.Policy
}

// CachePurger clears cached listings after a write.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// ViewingHandler exposes the booking store over HTTP.  It validates the
// request shape only; booking rules live in the store.
type ViewingHandler struct {
	Store  ViewingStore
	Cache  CachePurger
	Logger *zap.Logger
}

// NewViewingHandler panics on a nil store.  cache may be nil.
func NewViewingHandler(s ViewingStore, cache CachePurger, logger *zap.Logger) *ViewingHandler {
	if s == nil {
		panic("nil store passed to NewViewingHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewingHandler{Store: s, Cache: cache, Logger: logger}
}

type bookViewingRequest struct {
	StartTime  string `json:"start_time"`
	ViewerName string `json:"viewer_name"`
	Property   string `json:"property"`
}

type scheduleResponse struct {
	Timezone    string      `json:"timezone"`
	OpenHour    int         `json:"open_hour"`
	CloseHour   int         `json:"close_hour"`
	SlotMinutes int         `json:"slot_minutes"`
	SlotsPerDay int         `json:"slots_per_day"`
	Stats       store.Stats `json:"stats"`
}

// ListSlots handles GET /v1/slots.  With ?grouped=true the free slots are
// bucketed by date in the schedule's timezone.
func (h *ViewingHandler) ListSlots(c echo.Context) error {
	slots := h.Store.ListAvailableSlots()
	if grouped := strings.ToLower(c.QueryParam("grouped")); grouped == "true" || grouped == "1" {
		days := schedule.GroupByDate(slots, h.Store.Location())
		if days == nil {
			days = []schedule.DaySlots{}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"timezone": h.Store.Location().String(),
			"days":     days,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"timezone": h.Store.Location().String(),
		"slots":    slots,
	})
}

// ListViewings handles GET /v1/viewings and returns bookings in start
// time order.
func (h *ViewingHandler) ListViewings(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"viewings": h.Store.ListReservations()})
}

// BookViewing handles POST /v1/viewings.  start_time must be RFC 3339 and
// match the start of a free slot exactly.
func (h *ViewingHandler) BookViewing(c echo.Context) error {
	var body bookViewingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.StartTime) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time is required"})
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(body.StartTime))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be RFC 3339"})
	}

	ctx := c.Request().Context()
	res, err := h.Store.Reserve(ctx, start, body.ViewerName, body.Property)
	if err != nil {
		return h.storeError(c, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, res)
}

// CancelViewing handles DELETE /v1/viewings/:id and replies with the
// removed reservation, shaped like the BookViewing reply.
func (h *ViewingHandler) CancelViewing(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid viewing id"})
	}
	ctx := c.Request().Context()
	res, err := h.Store.Cancel(ctx, id)
	if err != nil {
		return h.storeError(c, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, res)
}

// Schedule handles GET /v1/schedule: the policy, timezone and counts.
func (h *ViewingHandler) Schedule(c echo.Context) error {
	p := h.Store.Policy()
	return c.JSON(http.StatusOK, scheduleResponse{
		Timezone:    h.Store.Location().String(),
		OpenHour:    p.OpenHour,
		CloseHour:   p.CloseHour,
		SlotMinutes: int(p.SlotDuration / time.Minute),
		SlotsPerDay: p.SlotsPerDay(),
		Stats:       h.Store.Stats(),
	})
}

func (h *ViewingHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Logger.Warn("listing cache purge failed", zap.Error(err))
	}
}

// storeError maps store sentinel errors to HTTP responses.
func (h *ViewingHandler) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "viewer_name and property are required"})
	case errors.Is(err, store.ErrSlotUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot is not available"})
	case errors.Is(err, store.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "viewing not found"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request cancelled"})
	default:
		h.Logger.Error("unexpected store error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
