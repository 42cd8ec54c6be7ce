// Package signature owns the e-signature workflow layered on top of a
// completed booking: opening the signing window, accepting the
// customer's submission, and escalating windows that elapse.  The
// signature axis moves unsigned → requested → signed, with
// requested → expired reachable only through escalation.
package signature

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/homeservepro/marketplace/internal/model"
    "github.com/homeservepro/marketplace/internal/repository"
)

// RequiredConfirmation is the phrase a submission's confirmation text
// must contain (case-insensitive substring match).
const RequiredConfirmation = "I confirm the service met my expectations"

// DefaultTimeoutHours is the signature window length used when the
// caller does not specify one.
const DefaultTimeoutHours = 48

// ErrValidation is returned when a submission is malformed, including a
// confirmation text missing the required phrase.  The guard runs before
// anything touches persistence.
var ErrValidation = errors.New("validation failed")

// ErrInvalidState is returned when a precondition on the signature axis
// is not met: requesting a window on a non-completed booking, or
// signing a booking that is already signed or escalated.
var ErrInvalidState = errors.New("invalid signature state")

// ErrExpired is returned when a submission arrives after the window
// closed.  This is a named domain state, not a generic failure: the
// customer must go through support for a re-request.
var ErrExpired = errors.New("signature request has expired, contact support")

// Store is the booking persistence the workflow needs.  The three
// state-changing methods are atomic conditional updates; MarkSigned and
// MarkExpired are mutually exclusive on the same row, so a customer
// submission racing the timeout sweep resolves to exactly one winner.
type Store interface {
    GetByID(ctx context.Context, id string) (*model.Booking, error)
    OpenSignatureWindow(ctx context.Context, id string, requestedAt, timeoutAt time.Time) error
    MarkSigned(ctx context.Context, id, hash string, submittedAt time.Time) error
    MarkExpired(ctx context.Context, id string, now time.Time) error
}

// SignatureStore persists immutable signing events.
type SignatureStore interface {
    Insert(ctx context.Context, s *model.Signature) error
}

// VendorStore provides the vendor reads and aggregate updates performed
// after a successful submission.
type VendorStore interface {
    GetByID(ctx context.Context, id string) (*model.Vendor, error)
    ApplyRating(ctx context.Context, id string, rating int) error
    RecordCompletedJob(ctx context.Context, id string, amount float64) error
}

// Notifier dispatches a typed event to a user, best-effort.
type Notifier interface {
    Notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) error
}

// AuditSink records state-changing actions.
type AuditSink interface {
    Record(ctx context.Context, action model.AuditAction, entityType, entityID, userID string, details map[string]string) error
}

// Workflow coordinates the signature axis of a booking.
type Workflow struct {
    bookings   Store
    signatures SignatureStore
    vendors    VendorStore
    notifier   Notifier
    audit      AuditSink
    now        func() time.Time
}

// NewWorkflow constructs a Workflow.  All dependencies must be non-nil.
func NewWorkflow(bookings Store, signatures SignatureStore, vendors VendorStore, notifier Notifier, audit AuditSink) *Workflow {
    if bookings == nil || signatures == nil || vendors == nil || notifier == nil || audit == nil {
        panic("nil dependency passed to NewWorkflow")
    }
    return &Workflow{
        bookings:   bookings,
        signatures: signatures,
        vendors:    vendors,
        notifier:   notifier,
        audit:      audit,
        now:        func() time.Time { return time.Now().UTC() },
    }
}

// Request opens the signature window on a completed booking.
// Re-requesting while a window is already open is idempotent and
// extends the window; a signed or escalated booking cannot be
// re-opened.  The customer is notified that their signature is due.
func (w *Workflow) Request(ctx context.Context, bookingID string, timeoutHours int) error {
    if timeoutHours <= 0 {
        timeoutHours = DefaultTimeoutHours
    }
    b, err := w.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return err
    }
    if b.Status != model.BookingCompleted {
        return fmt.Errorf("%w: booking is %s, signature requires completed", ErrInvalidState, b.Status)
    }
    if b.SignatureStatus != model.SignatureUnsigned && b.SignatureStatus != model.SignatureRequested {
        return fmt.Errorf("%w: signature is already %s", ErrInvalidState, b.SignatureStatus)
    }
    now := w.now()
    timeoutAt := now.Add(time.Duration(timeoutHours) * time.Hour)
    if err := w.bookings.OpenSignatureWindow(ctx, bookingID, now, timeoutAt); err != nil {
        return err
    }
    w.notify(ctx, b.CustomerID, model.CategorySignatureRequired,
        "Signature Required",
        fmt.Sprintf("Please review and sign off on your completed service: %s", b.ServiceName),
        map[string]string{
            "booking_id":    b.ID,
            "timeout_hours": fmt.Sprintf("%d", timeoutHours),
        })
    return nil
}

// SubmitInput carries a customer's signature submission.
type SubmitInput struct {
    BookingID          string
    CustomerID         string
    SignatureData      string
    ConfirmationText   string
    SatisfactionRating *int
    Feedback           string
}

// Submit accepts the customer's signature, finalizing the booking as
// verified.  The confirmation-text guard runs first, before anything is
// read or written.  The expiry check is half-open on the future side:
// submission exactly at the timeout still succeeds, one second past it
// fails with ErrExpired.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (*model.Signature, error) {
    if in.BookingID == "" || in.SignatureData == "" {
        return nil, fmt.Errorf("%w: booking id and signature data are required", ErrValidation)
    }
    if !strings.Contains(strings.ToLower(in.ConfirmationText), strings.ToLower(RequiredConfirmation)) {
        return nil, fmt.Errorf("%w: confirmation text must state the service met expectations", ErrValidation)
    }

    b, err := w.bookings.GetByID(ctx, in.BookingID)
    if err != nil {
        return nil, err
    }
    if b.CustomerID != in.CustomerID {
        return nil, fmt.Errorf("%w: booking belongs to a different customer", repository.ErrForbidden)
    }
    if b.Status != model.BookingCompleted {
        return nil, fmt.Errorf("%w: booking must be completed before signing, got %s", ErrInvalidState, b.Status)
    }
    if b.SignatureStatus != model.SignatureUnsigned && b.SignatureStatus != model.SignatureRequested {
        return nil, fmt.Errorf("%w: signature is already %s", ErrInvalidState, b.SignatureStatus)
    }
    if b.VendorID == nil {
        return nil, fmt.Errorf("%w: booking has no vendor to sign off against", ErrInvalidState)
    }
    now := w.now()
    if b.SignatureTimeoutAt != nil && now.After(*b.SignatureTimeoutAt) {
        return nil, ErrExpired
    }

    hash := signatureHash(b.ID, in.CustomerID, now, in.ConfirmationText)

    // The conditional update is the deciding step: if the sweep
    // escalated this booking between our read and this write, zero rows
    // match and the submission loses the race.
    if err := w.bookings.MarkSigned(ctx, in.BookingID, hash, now); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return nil, ErrExpired
        }
        return nil, err
    }

    sig := &model.Signature{
        ID:                 uuid.NewString(),
        BookingID:          b.ID,
        CustomerID:         in.CustomerID,
        VendorID:           *b.VendorID,
        SignatureData:      in.SignatureData,
        SignatureHash:      hash,
        ConfirmationText:   in.ConfirmationText,
        SatisfactionRating: in.SatisfactionRating,
        Feedback:           in.Feedback,
        SignedAt:           now,
    }
    if err := w.signatures.Insert(ctx, sig); err != nil {
        return nil, err
    }

    // Post-verification vendor aggregates: experience counter, earnings
    // and optional rating.  Failures here never unwind the signature.
    if err := w.vendors.RecordCompletedJob(ctx, *b.VendorID, b.Amount); err != nil {
        log.Printf("signature: completed-job update for vendor %s failed: %v", *b.VendorID, err)
    }
    if in.SatisfactionRating != nil {
        if err := w.vendors.ApplyRating(ctx, *b.VendorID, *in.SatisfactionRating); err != nil {
            log.Printf("signature: rating update for vendor %s failed: %v", *b.VendorID, err)
        }
    }

    if v, err := w.vendors.GetByID(ctx, *b.VendorID); err == nil {
        w.notify(ctx, v.UserID, model.CategorySignatureCompleted,
            "Customer Signed Off",
            fmt.Sprintf("Customer has signed off on completed service: %s", b.ServiceName),
            map[string]string{"booking_id": b.ID, "signature_id": sig.ID})
    } else {
        log.Printf("signature: vendor lookup for sign-off notice failed: %v", err)
    }

    w.auditLog(ctx, model.AuditSignature, b.ID, in.CustomerID, map[string]string{
        "signature_id":   sig.ID,
        "signature_hash": hash,
    })
    return sig, nil
}

// Escalate marks an overdue signature window as expired.  The first
// boolean reports whether this call performed the change; re-invocation
// on an already-escalated booking is a no-op (false, nil), never an
// error, because the sweep may observe the same row more than once
// before the first write becomes visible.
func (w *Workflow) Escalate(ctx context.Context, bookingID string) (bool, error) {
    now := w.now()
    err := w.bookings.MarkExpired(ctx, bookingID, now)
    if err == nil {
        return true, nil
    }
    if !errors.Is(err, repository.ErrConflict) {
        return false, err
    }
    // Zero rows matched: either someone else escalated first (no-op) or
    // the booking is not actually eligible.
    b, err := w.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return false, err
    }
    if b.SignatureEscalated {
        return false, nil
    }
    return false, fmt.Errorf("%w: booking is %s/%s and not overdue", ErrInvalidState, b.Status, b.SignatureStatus)
}

// signatureHash binds the signing event to the booking, the customer,
// the submission instant and the confirmation text.  It is computed
// once at submission and never recomputed.
func signatureHash(bookingID, customerID string, at time.Time, confirmationText string) string {
    sum := sha256.Sum256([]byte(bookingID + customerID + at.UTC().Format(time.RFC3339) + confirmationText))
    return hex.EncodeToString(sum[:])
}

func (w *Workflow) notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) {
    if err := w.notifier.Notify(ctx, userID, category, title, message, payload); err != nil {
        log.Printf("signature: notify %s failed: %v", category, err)
    }
}

func (w *Workflow) auditLog(ctx context.Context, action model.AuditAction, bookingID, userID string, details map[string]string) {
    if err := w.audit.Record(ctx, action, "booking", bookingID, userID, details); err != nil {
        log.Printf("signature: audit %s failed: %v", action, err)
    }
}
