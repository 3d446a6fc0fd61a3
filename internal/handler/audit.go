package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/queue"
)

// EventLister reads the booking audit trail.
type EventLister interface {
	ListRecent(ctx context.Context, reservationID string, limit int) ([]queue.ViewingEvent, error)
}

// AuditHandler serves the operator-only audit endpoints.
type AuditHandler struct {
	Events EventLister
	Logger *zap.Logger
}

// ListEvents handles GET /v1/admin/events.  Optional query parameters:
// reservation_id to follow one booking, limit (1..500, default 100).
func (h *AuditHandler) ListEvents(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}
	events, err := h.Events.ListRecent(c.Request().Context(), c.QueryParam("reservation_id"), limit)
	if err != nil {
		h.Logger.Error("list viewing events", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if events == nil {
		events = []queue.ViewingEvent{}
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}
