package router

import (
	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/handler"
	"github.com/homeservepro/marketplace/internal/middleware"
)

// RegisterOps registers the operations endpoints under /v1/ops.  Both
// operations roles are accepted; they carry the same authority in the
// lifecycle's authorization checks.
func RegisterOps(e *echo.Echo, o *handler.OpsHandler, catalog *handler.CatalogHandler, jwtSecret string) {
	g := e.Group(
		"/v1/ops",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ops_manager", "super_admin"),
	)

	g.GET("/bookings/live", o.LiveBookings)
	g.POST("/bookings/:id/reassign", o.Reassign)
	g.POST("/bookings/:id/transition", o.Transition)

	g.PATCH("/vendors/:id/status", o.SetVendorStatus)

	// Catalog management lives with operations.
	g.POST("/services", catalog.CreateService)

	// Force one sweep cycle outside the timer, e.g. after an incident.
	g.POST("/sweep/run", o.RunSweep)
}
