package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/booking"
	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/repository"
	"github.com/homeservepro/marketplace/internal/signature"
)

// respondError maps the domain's sentinel errors onto HTTP status codes
// with a JSON error body.  Anything unrecognized is a 500 with a
// generic message so internal details never leak to clients.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrValidation), errors.Is(err, signature.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, signature.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, signature.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "state changed concurrently, retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// currentUser reads the identity the JWT middleware stored in context.
func currentUser(c echo.Context) (userID, role string) {
	if v, ok := c.Get("user_id").(string); ok {
		userID = v
	}
	if v, ok := c.Get("role").(string); ok {
		role = v
	}
	return userID, role
}

// pageParams parses optional ?offset and ?limit query parameters,
// clamping the limit to a sane range.
func pageParams(c echo.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

// bookingView is the JSON shape bookings are rendered as.  Repository
// models carry no JSON tags; handlers own the response format.
type bookingView struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	VendorID           *string    `json:"vendor_id"`
	ServiceID          string     `json:"service_id"`
	ServiceName        string     `json:"service_name"`
	Status             string     `json:"status"`
	SignatureStatus    string     `json:"signature_status"`
	SignatureTimeoutAt *time.Time `json:"signature_timeout_at,omitempty"`
	SignatureEscalated bool       `json:"signature_escalated"`
	ServiceDate        string     `json:"service_date"`
	ServiceTime        string     `json:"service_time"`
	Address            string     `json:"address"`
	Pincode            string     `json:"pincode"`
	Description        string     `json:"description,omitempty"`
	CompletionNotes    string     `json:"completion_notes,omitempty"`
	Amount             float64    `json:"amount"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toBookingView(b *model.Booking) bookingView {
	return bookingView{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		VendorID:           b.VendorID,
		ServiceID:          b.ServiceID,
		ServiceName:        b.ServiceName,
		Status:             string(b.Status),
		SignatureStatus:    string(b.SignatureStatus),
		SignatureTimeoutAt: b.SignatureTimeoutAt,
		SignatureEscalated: b.SignatureEscalated,
		ServiceDate:        b.ServiceDate,
		ServiceTime:        b.ServiceTime,
		Address:            b.Address,
		Pincode:            b.Pincode,
		Description:        b.Description,
		CompletionNotes:    b.CompletionNotes,
		Amount:             b.Amount,
		CreatedAt:          b.CreatedAt,
	}
}

func toBookingViews(bs []model.Booking) []bookingView {
	out := make([]bookingView, 0, len(bs))
	for i := range bs {
		out = append(out, toBookingView(&bs[i]))
	}
	return out
}
