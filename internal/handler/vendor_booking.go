package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/booking"
	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/repository"
	"github.com/homeservepro/marketplace/internal/signature"
)

// VendorHandler serves the vendor-facing booking endpoints.  Every
// request resolves the vendor profile from the authenticated user so
// the lifecycle can check booking ownership.
type VendorHandler struct {
	Bookings   *repository.BookingRepo
	Vendors    *repository.VendorRepo
	Lifecycle  *booking.Lifecycle
	Signatures *signature.Workflow
}

func NewVendorHandler(b *repository.BookingRepo, v *repository.VendorRepo, lc *booking.Lifecycle, wf *signature.Workflow) *VendorHandler {
	return &VendorHandler{Bookings: b, Vendors: v, Lifecycle: lc, Signatures: wf}
}

// profile loads the vendor profile backing the authenticated user.
func (h *VendorHandler) profile(ctx context.Context, c echo.Context) (*model.Vendor, error) {
	userID, _ := currentUser(c)
	return h.Vendors.GetByUserID(ctx, userID)
}

func (h *VendorHandler) actor(c echo.Context, v *model.Vendor) booking.Actor {
	userID, _ := currentUser(c)
	return booking.Actor{UserID: userID, Role: model.RoleVendor, VendorID: v.ID}
}

// ListBookings returns the bookings assigned to the vendor, newest first.
func (h *VendorHandler) ListBookings(c echo.Context) error {
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.profile(ctx, c)
	if err != nil {
		return respondError(c, err)
	}
	bs, err := h.Bookings.ListByVendor(ctx, v.ID, offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": toBookingViews(bs)})
}

// transitionTo runs one lifecycle edge on behalf of the vendor.
func (h *VendorHandler) transitionTo(c echo.Context, target model.BookingStatus) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.profile(ctx, c)
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Lifecycle.Transition(ctx, c.Param("id"), h.actor(c, v), target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

// Accept moves a pending booking to accepted.
func (h *VendorHandler) Accept(c echo.Context) error {
	return h.transitionTo(c, model.BookingAccepted)
}

// Reject declines a pending booking.
func (h *VendorHandler) Reject(c echo.Context) error {
	return h.transitionTo(c, model.BookingRejected)
}

// Start marks an accepted booking as in_progress.
func (h *VendorHandler) Start(c echo.Context) error {
	return h.transitionTo(c, model.BookingInProgress)
}

type completeReq struct {
	CompletionNotes string   `json:"completion_notes"`
	BeforePhotos    []string `json:"before_photos"`
	AfterPhotos     []string `json:"after_photos"`
}

// Complete finishes the work and opens the 48-hour signature window in
// one flow.  The response carries the booking with its requested
// signature state.
func (h *VendorHandler) Complete(c echo.Context) error {
	var req completeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.profile(ctx, c)
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Lifecycle.CompleteWithSignatureRequest(ctx, c.Param("id"), h.actor(c, v),
		h.Signatures, req.CompletionNotes, req.BeforePhotos, req.AfterPhotos)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

type availabilityReq struct {
	Available *bool `json:"available"`
}

// SetAvailability toggles whether the vendor takes new work.  An
// unavailable vendor is excluded from allocation but keeps their
// current bookings.
func (h *VendorHandler) SetAvailability(c echo.Context) error {
	var req availabilityReq
	if err := c.Bind(&req); err != nil || req.Available == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "available (boolean) required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.profile(ctx, c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Vendors.SetAvailability(ctx, v.ID, *req.Available); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"vendor_id": v.ID, "available": *req.Available})
}

// Profile returns the vendor's own profile with its running aggregates.
func (h *VendorHandler) Profile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.profile(ctx, c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                v.ID,
		"name":              v.Name,
		"onboarding_status": v.OnboardingStatus,
		"availability":      v.Availability,
		"services":          v.Services,
		"pincodes":          v.Pincodes,
		"ratings":           v.Ratings,
		"total_ratings":     v.TotalRatings,
		"earnings":          v.Earnings,
		"completed_jobs":    v.CompletedJobs,
	})
}
