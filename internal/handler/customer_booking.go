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

// CustomerHandler serves the customer-facing booking and signature
// endpoints.  State changes go through the lifecycle and signature
// workflow; direct repository access is read-only.
type CustomerHandler struct {
	Bookings   *repository.BookingRepo
	SigRecords *repository.SignatureRepo
	Lifecycle  *booking.Lifecycle
	Signatures *signature.Workflow
}

func NewCustomerHandler(b *repository.BookingRepo, s *repository.SignatureRepo, lc *booking.Lifecycle, wf *signature.Workflow) *CustomerHandler {
	return &CustomerHandler{Bookings: b, SigRecords: s, Lifecycle: lc, Signatures: wf}
}

type createBookingReq struct {
	ServiceID   string `json:"service_id"`
	ServiceDate string `json:"service_date"`
	ServiceTime string `json:"service_time"`
	Address     string `json:"address"`
	Pincode     string `json:"pincode"`
	Description string `json:"description"`
	VendorID    string `json:"vendor_id"` // optional: pre-selected vendor
}

// CreateBooking creates a booking for the authenticated customer,
// running vendor allocation when no vendor was pre-selected.
func (h *CustomerHandler) CreateBooking(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	userID, _ := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Lifecycle.Create(ctx, booking.CreateInput{
		CustomerID:  userID,
		ServiceID:   req.ServiceID,
		ServiceDate: req.ServiceDate,
		ServiceTime: req.ServiceTime,
		Address:     req.Address,
		Pincode:     req.Pincode,
		Description: req.Description,
		VendorID:    req.VendorID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingView(b))
}

// ListBookings returns the authenticated customer's bookings, newest first.
func (h *CustomerHandler) ListBookings(c echo.Context) error {
	userID, _ := currentUser(c)
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	bs, err := h.Bookings.ListByCustomer(ctx, userID, offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": toBookingViews(bs)})
}

// GetBooking returns one booking.  Customers can only see their own.
func (h *CustomerHandler) GetBooking(c echo.Context) error {
	userID, _ := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if b.CustomerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

// CancelBooking cancels the customer's own booking when the lifecycle
// permits it (pending, accepted or in_progress).
func (h *CustomerHandler) CancelBooking(c echo.Context) error {
	userID, _ := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	actor := booking.Actor{UserID: userID, Role: model.RoleCustomer}
	b, err := h.Lifecycle.Transition(ctx, c.Param("id"), actor, model.BookingCancelled)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

type submitSignatureReq struct {
	SignatureData      string `json:"signature_data"`
	ConfirmationText   string `json:"confirmation_text"`
	SatisfactionRating *int   `json:"satisfaction_rating"`
	Feedback           string `json:"feedback"`
}

type signatureView struct {
	ID                 string    `json:"id"`
	BookingID          string    `json:"booking_id"`
	SignatureHash      string    `json:"signature_hash"`
	SatisfactionRating *int      `json:"satisfaction_rating,omitempty"`
	Feedback           string    `json:"feedback,omitempty"`
	SignedAt           time.Time `json:"signed_at"`
}

// SubmitSignature accepts the customer's e-signature on a completed
// booking.  The workflow enforces ownership, the confirmation phrase
// and the expiry window; an expired window maps to 410 Gone.
func (h *CustomerHandler) SubmitSignature(c echo.Context) error {
	var req submitSignatureReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	userID, _ := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sig, err := h.Signatures.Submit(ctx, signature.SubmitInput{
		BookingID:          c.Param("id"),
		CustomerID:         userID,
		SignatureData:      req.SignatureData,
		ConfirmationText:   req.ConfirmationText,
		SatisfactionRating: req.SatisfactionRating,
		Feedback:           req.Feedback,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, signatureView{
		ID:                 sig.ID,
		BookingID:          sig.BookingID,
		SignatureHash:      sig.SignatureHash,
		SatisfactionRating: sig.SatisfactionRating,
		Feedback:           sig.Feedback,
		SignedAt:           sig.SignedAt,
	})
}

// SignatureStatus reports where a booking stands on the signature axis:
// the current state, the window deadline and the stored signing event
// once one exists.
func (h *CustomerHandler) SignatureStatus(c echo.Context) error {
	userID, _ := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if b.CustomerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
	}

	resp := echo.Map{
		"booking_id":       b.ID,
		"signature_status": b.SignatureStatus,
		"escalated":        b.SignatureEscalated,
	}
	if b.SignatureTimeoutAt != nil {
		resp["timeout_at"] = b.SignatureTimeoutAt
	}
	if b.SignatureStatus == model.SignatureSigned {
		if sig, err := h.SigRecords.GetByBookingID(ctx, b.ID); err == nil {
			resp["signature"] = signatureView{
				ID:                 sig.ID,
				BookingID:          sig.BookingID,
				SignatureHash:      sig.SignatureHash,
				SatisfactionRating: sig.SatisfactionRating,
				Feedback:           sig.Feedback,
				SignedAt:           sig.SignedAt,
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}
