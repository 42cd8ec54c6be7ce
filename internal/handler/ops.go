package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/booking"
	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/monitor"
	"github.com/homeservepro/marketplace/internal/repository"
)

// OpsHandler serves the operations endpoints: live booking overview,
// vendor reassignment, vendor approval and the on-demand sweep trigger.
type OpsHandler struct {
	Bookings  *repository.BookingRepo
	Vendors   *repository.VendorRepo
	Lifecycle *booking.Lifecycle
	Monitor   *monitor.Monitor
}

func NewOpsHandler(b *repository.BookingRepo, v *repository.VendorRepo, lc *booking.Lifecycle, m *monitor.Monitor) *OpsHandler {
	return &OpsHandler{Bookings: b, Vendors: v, Lifecycle: lc, Monitor: m}
}

var liveStatuses = []model.BookingStatus{
	model.BookingPending,
	model.BookingAccepted,
	model.BookingInProgress,
	model.BookingCompleted,
}

// LiveBookings lists non-terminal bookings grouped by status.  An
// optional ?status filter narrows to one status.
func (h *OpsHandler) LiveBookings(c echo.Context) error {
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if s := c.QueryParam("status"); s != "" {
		bs, err := h.Bookings.ListByStatus(ctx, model.BookingStatus(s), offset, limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"bookings": toBookingViews(bs)})
	}

	grouped := make(map[string][]bookingView, len(liveStatuses))
	for _, status := range liveStatuses {
		bs, err := h.Bookings.ListByStatus(ctx, status, offset, limit)
		if err != nil {
			return respondError(c, err)
		}
		grouped[string(status)] = toBookingViews(bs)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": grouped})
}

type reassignReq struct {
	VendorID string `json:"vendor_id"`
}

// Reassign points a booking at a different vendor.  The lifecycle
// rejects reassignment once the booking entered the signature phase.
func (h *OpsHandler) Reassign(c echo.Context) error {
	var req reassignReq
	if err := c.Bind(&req); err != nil || req.VendorID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vendor_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Lifecycle.Reassign(ctx, c.Param("id"), req.VendorID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

// Transition lets operations perform any legal lifecycle edge as an
// administrative override.
func (h *OpsHandler) Transition(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status required"})
	}
	userID, role := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actor := booking.Actor{UserID: userID, Role: model.Role(role)}
	b, err := h.Lifecycle.Transition(ctx, c.Param("id"), actor, model.BookingStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

type approveVendorReq struct {
	Status string `json:"status"` // approved | rejected | suspended
}

// SetVendorStatus moves a vendor through onboarding (approve, reject,
// suspend).  Only approved vendors participate in allocation.
func (h *OpsHandler) SetVendorStatus(c echo.Context) error {
	var req approveVendorReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := model.VendorStatus(req.Status)
	switch status {
	case model.VendorApproved, model.VendorRejected, model.VendorSuspended:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be approved, rejected or suspended"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Vendors.SetOnboardingStatus(ctx, c.Param("id"), status); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"vendor_id": c.Param("id"), "onboarding_status": status})
}

// RunSweep triggers one timeout monitor cycle on demand and returns its
// summary.  The same cycle runs on a timer in the server; this endpoint
// exists for operations to force a pass after an incident.
func (h *OpsHandler) RunSweep(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	sum, err := h.Monitor.Run(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, sum)
}
