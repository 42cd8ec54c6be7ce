package router

import (
	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/handler"
	"github.com/homeservepro/marketplace/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All
// routes require a valid JWT and the customer role.  Customers can
// create bookings, view and cancel their own, and drive the signature
// workflow on completed work.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("customer"),
	)
	g.POST("/bookings", h.CreateBooking)
	g.GET("/my-bookings", h.ListBookings)
	g.GET("/bookings/:id", h.GetBooking)
	g.POST("/bookings/:id/cancel", h.CancelBooking)

	// Signature endpoints.  Submission returns 410 once the window has
	// expired; the status endpoint lets clients render the countdown.
	g.POST("/bookings/:id/signature", h.SubmitSignature)
	g.GET("/bookings/:id/signature", h.SignatureStatus)
}
