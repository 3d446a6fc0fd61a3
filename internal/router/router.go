package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/viewing-scheduler/internal/handler"
	"github.com/iliyamo/viewing-scheduler/internal/middleware"
	"github.com/iliyamo/viewing-scheduler/internal/utils"
)

// RegisterRoutes registers non-authenticated routes on the provided Echo
// instance.  /healthz is used by load balancers and stays outside rate
// limiting and caching.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterViewings mounts the public booking API under /v1.  cache wraps
// the listing endpoints only; writes purge it through the handler.
func RegisterViewings(e *echo.Echo, h *handler.ViewingHandler, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", limiter)

	// Reads.
	g.GET("/slots", h.ListSlots, cache)
	g.GET("/viewings", h.ListViewings, cache)
	g.GET("/schedule", h.Schedule)

	// Writes.
	g.POST("/viewings", h.BookViewing)
	g.DELETE("/viewings/:id", h.CancelViewing)
}

// RegisterAdmin mounts the operator endpoints.  Every request needs a JWT
// signed with jwtSecret carrying the OPERATOR role.  limiter runs after
// authentication so operators are budgeted by token subject.
func RegisterAdmin(e *echo.Echo, a *handler.AuditHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(utils.RoleOperator))
	g.Use(limiter)
	g.GET("/events", a.ListEvents)
}
