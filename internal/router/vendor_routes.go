package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/handler"    // vendor handlers
	"github.com/homeservepro/marketplace/internal/middleware" // JWT + role middlewares
)

// RegisterVendor registers vendor-scoped endpoints under /v1.
// All routes require a valid JWT and the vendor role.
func RegisterVendor(e *echo.Echo, v *handler.VendorHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/v1/vendor",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("vendor"),
	)

	g.GET("/profile", v.Profile)
	g.PATCH("/availability", v.SetAvailability)

	// ---- Assigned bookings ----
	g.GET("/bookings", v.ListBookings)
	g.POST("/bookings/:id/accept", v.Accept)
	g.POST("/bookings/:id/reject", v.Reject)
	g.POST("/bookings/:id/start", v.Start)
	// Completion opens the signature window in the same request.
	g.POST("/bookings/:id/complete", v.Complete)
}
