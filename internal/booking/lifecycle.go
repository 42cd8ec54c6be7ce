// Package booking owns booking creation and every lifecycle status
// transition.  The transition graph is a closed table: an edge either
// exists here or the transition fails with ErrInvalidTransition, so no
// caller can move a booking along a path the product does not define.
package booking

import (
    "context"
    "errors"
    "fmt"
    "log"
    "regexp"

    "github.com/google/uuid"

    "github.com/homeservepro/marketplace/internal/allocation"
    "github.com/homeservepro/marketplace/internal/model"
    "github.com/homeservepro/marketplace/internal/repository"
)

// ErrValidation is returned for malformed input: missing required
// fields, a bad pincode, or an ineligible vendor on reassignment.
var ErrValidation = errors.New("validation failed")

// ErrInvalidTransition is returned when the requested status edge does
// not exist in the transition graph, or when a lifecycle operation is
// not permitted from the booking's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the booking persistence the lifecycle needs.  All
// state-changing methods are atomic conditional updates that return the
// repository's conflict sentinel when the row no longer carries the
// expected state.
type Store interface {
    Insert(ctx context.Context, b *model.Booking) error
    GetByID(ctx context.Context, id string) (*model.Booking, error)
    UpdateStatus(ctx context.Context, id string, expected, next model.BookingStatus) error
    CompleteWork(ctx context.Context, id string, expected model.BookingStatus, notes string, beforePhotos, afterPhotos []string) error
    AssignVendor(ctx context.Context, id, vendorID string) error
}

// VendorStore provides the vendor reads the lifecycle needs.
type VendorStore interface {
    GetByID(ctx context.Context, id string) (*model.Vendor, error)
    ListCandidates(ctx context.Context) ([]model.Vendor, error)
}

// ServiceStore resolves catalog entries at booking creation.
type ServiceStore interface {
    GetByID(ctx context.Context, id string) (*model.Service, error)
}

// Notifier dispatches a typed event to a user.  Delivery is
// best-effort; lifecycle operations log dispatch failures and continue.
type Notifier interface {
    Notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) error
}

// AuditSink records state-changing actions.  It is write-only.
type AuditSink interface {
    Record(ctx context.Context, action model.AuditAction, entityType, entityID, userID string, details map[string]string) error
}

// SignatureRequester opens a signature window on a completed booking.
// Implemented by the signature workflow.
type SignatureRequester interface {
    Request(ctx context.Context, bookingID string, timeoutHours int) error
}

// Actor identifies who is attempting a lifecycle operation.  VendorID
// is the actor's vendor profile id and is only set for vendor roles.
type Actor struct {
    UserID   string
    Role     model.Role
    VendorID string
}

// transitions is the closed status graph.  Terminal states have no
// outgoing edges.
var transitions = map[model.BookingStatus][]model.BookingStatus{
    model.BookingPending:    {model.BookingAccepted, model.BookingRejected, model.BookingCancelled},
    model.BookingAccepted:   {model.BookingInProgress, model.BookingCancelled},
    model.BookingInProgress: {model.BookingCompleted, model.BookingCancelled},
    model.BookingCompleted:  {model.BookingVerified},
}

func edgeExists(from, to model.BookingStatus) bool {
    for _, next := range transitions[from] {
        if next == to {
            return true
        }
    }
    return false
}

// vendorTargets are the transitions a vendor may perform on a booking
// assigned to them.  Everything else requires an operations role;
// customers may only cancel.
var vendorTargets = map[model.BookingStatus]bool{
    model.BookingAccepted:   true,
    model.BookingRejected:   true,
    model.BookingInProgress: true,
    model.BookingCompleted:  true,
}

var pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// Lifecycle coordinates booking state changes.
type Lifecycle struct {
    bookings     Store
    vendors      VendorStore
    services     ServiceStore
    notifier     Notifier
    audit        AuditSink
    sigTimeoutHr int
}

// NewLifecycle constructs a Lifecycle.  All dependencies must be non-nil.
func NewLifecycle(bookings Store, vendors VendorStore, services ServiceStore, notifier Notifier, audit AuditSink) *Lifecycle {
    if bookings == nil || vendors == nil || services == nil || notifier == nil || audit == nil {
        panic("nil dependency passed to NewLifecycle")
    }
    return &Lifecycle{
        bookings:     bookings,
        vendors:      vendors,
        services:     services,
        notifier:     notifier,
        audit:        audit,
        sigTimeoutHr: 48,
    }
}

// SetSignatureTimeoutHours overrides the signature window length opened
// by CompleteWithSignatureRequest.  Values below one hour are ignored.
func (l *Lifecycle) SetSignatureTimeoutHours(hours int) {
    if hours >= 1 {
        l.sigTimeoutHr = hours
    }
}

// CreateInput carries everything needed to create a booking.  VendorID
// is optional; when empty the allocation engine picks the best eligible
// vendor, and the booking is created unassigned if none qualifies.
type CreateInput struct {
    CustomerID  string
    ServiceID   string
    ServiceDate string
    ServiceTime string
    Address     string
    Pincode     string
    Description string
    VendorID    string
}

// Create validates the input, resolves the service, allocates a vendor
// when none was pre-selected, and stores the booking in pending.  A
// booking without an eligible vendor is still created; assignment can
// happen later through Reassign.
func (l *Lifecycle) Create(ctx context.Context, in CreateInput) (*model.Booking, error) {
    if in.CustomerID == "" || in.ServiceID == "" || in.ServiceDate == "" || in.ServiceTime == "" || in.Address == "" {
        return nil, fmt.Errorf("%w: missing required fields", ErrValidation)
    }
    if !pincodeRe.MatchString(in.Pincode) {
        return nil, fmt.Errorf("%w: pincode must be 6 digits", ErrValidation)
    }
    svc, err := l.services.GetByID(ctx, in.ServiceID)
    if err != nil {
        return nil, err
    }

    var assigned *model.Vendor
    if in.VendorID != "" {
        v, err := l.vendors.GetByID(ctx, in.VendorID)
        if err != nil {
            return nil, err
        }
        if v.OnboardingStatus != model.VendorApproved || !v.Availability {
            return nil, fmt.Errorf("%w: vendor is not approved and available", ErrValidation)
        }
        assigned = v
    } else {
        candidates, err := l.vendors.ListCandidates(ctx)
        if err != nil {
            return nil, err
        }
        assigned = allocation.Allocate(candidates, svc.Name, in.Pincode)
    }

    b := &model.Booking{
        ID:              uuid.NewString(),
        CustomerID:      in.CustomerID,
        ServiceID:       svc.ID,
        ServiceName:     svc.Name,
        Status:          model.BookingPending,
        SignatureStatus: model.SignatureUnsigned,
        ServiceDate:     in.ServiceDate,
        ServiceTime:     in.ServiceTime,
        Address:         in.Address,
        Pincode:         in.Pincode,
        Description:     in.Description,
        Amount:          svc.BasePrice,
    }
    if assigned != nil {
        id := assigned.ID
        b.VendorID = &id
    }
    if err := l.bookings.Insert(ctx, b); err != nil {
        return nil, err
    }

    if assigned != nil {
        l.notify(ctx, assigned.UserID, model.CategoryBookingCreated,
            "New Booking Request",
            fmt.Sprintf("New booking for %s", svc.Name),
            map[string]string{"booking_id": b.ID})
    }
    l.auditLog(ctx, model.AuditCreate, b.ID, in.CustomerID, map[string]string{"service": svc.Name})
    return b, nil
}

// Transition moves a booking along one edge of the status graph on
// behalf of the given actor.  The edge must exist, the actor must be
// authorized for it, and the underlying update is conditional on the
// status the actor observed, so a concurrent writer surfaces as a
// conflict instead of a silent overwrite.
func (l *Lifecycle) Transition(ctx context.Context, bookingID string, actor Actor, target model.BookingStatus) (*model.Booking, error) {
    b, err := l.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if !edgeExists(b.Status, target) {
        return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
    }
    if err := authorize(b, actor, target); err != nil {
        return nil, err
    }
    if err := l.bookings.UpdateStatus(ctx, bookingID, b.Status, target); err != nil {
        return nil, err
    }
    l.notifyTransition(ctx, b, target)
    l.auditLog(ctx, model.AuditStatusChange, b.ID, actor.UserID, map[string]string{
        "from": string(b.Status),
        "to":   string(target),
    })
    b.Status = target
    return b, nil
}

// CompleteWithSignatureRequest atomically completes a booking and opens
// its 48-hour signature window.  Completion without an open window is
// not a valid terminal state for payment release, so the two steps are
// a single operation here.
func (l *Lifecycle) CompleteWithSignatureRequest(ctx context.Context, bookingID string, actor Actor, sig SignatureRequester, notes string, beforePhotos, afterPhotos []string) (*model.Booking, error) {
    b, err := l.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if !edgeExists(b.Status, model.BookingCompleted) {
        return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, model.BookingCompleted)
    }
    if err := authorize(b, actor, model.BookingCompleted); err != nil {
        return nil, err
    }
    if err := l.bookings.CompleteWork(ctx, bookingID, b.Status, notes, beforePhotos, afterPhotos); err != nil {
        return nil, err
    }
    l.notifyTransition(ctx, b, model.BookingCompleted)
    l.auditLog(ctx, model.AuditStatusChange, b.ID, actor.UserID, map[string]string{
        "from":             string(b.Status),
        "to":               string(model.BookingCompleted),
        "completion_notes": notes,
    })
    b.Status = model.BookingCompleted
    b.CompletionNotes = notes

    if err := sig.Request(ctx, bookingID, l.sigTimeoutHr); err != nil {
        return nil, err
    }
    b.SignatureStatus = model.SignatureRequested
    return b, nil
}

// Reassign is the administrative override that points a booking at a
// different vendor without changing its status.  The target vendor must
// be approved and available.  Reassignment is forbidden once the
// booking has entered the signature phase (completed or verified): the
// open window and any signature belong to the vendor who did the work.
func (l *Lifecycle) Reassign(ctx context.Context, bookingID, newVendorID string) (*model.Booking, error) {
    b, err := l.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if b.Status == model.BookingCompleted || b.Status == model.BookingVerified {
        return nil, fmt.Errorf("%w: cannot reassign a %s booking", ErrInvalidTransition, b.Status)
    }
    v, err := l.vendors.GetByID(ctx, newVendorID)
    if err != nil {
        return nil, err
    }
    if v.OnboardingStatus != model.VendorApproved || !v.Availability {
        return nil, fmt.Errorf("%w: vendor is not approved and available", ErrValidation)
    }
    if err := l.bookings.AssignVendor(ctx, bookingID, newVendorID); err != nil {
        return nil, err
    }
    l.notify(ctx, v.UserID, model.CategoryBookingReassigned,
        "Booking Assigned",
        fmt.Sprintf("You have been assigned a booking for %s", b.ServiceName),
        map[string]string{"booking_id": b.ID})
    l.auditLog(ctx, model.AuditUpdate, b.ID, "system", map[string]string{"reassigned_to": newVendorID})
    b.VendorID = &v.ID
    return b, nil
}

// authorize checks that the actor may perform the edge.  Operations
// roles may perform any legal edge as an admin override.  Vendors may
// accept/reject/start/complete bookings assigned to them.  Customers
// may only cancel their own bookings.
func authorize(b *model.Booking, actor Actor, target model.BookingStatus) error {
    if actor.Role.IsOps() {
        return nil
    }
    switch {
    case vendorTargets[target]:
        if actor.Role != model.RoleVendor {
            return fmt.Errorf("%w: %s requires a vendor", repository.ErrForbidden, target)
        }
        if b.VendorID == nil || *b.VendorID != actor.VendorID {
            return fmt.Errorf("%w: booking is not assigned to this vendor", repository.ErrForbidden)
        }
        return nil
    case target == model.BookingCancelled:
        if actor.Role == model.RoleCustomer && b.CustomerID == actor.UserID {
            return nil
        }
        return fmt.Errorf("%w: only the customer or operations may cancel", repository.ErrForbidden)
    default:
        // verified and any future edges are reserved for the signature
        // workflow and operations overrides.
        return fmt.Errorf("%w: %s requires an operations role", repository.ErrForbidden, target)
    }
}

// transitionNotice describes the counter-party notification for an edge.
type transitionNotice struct {
    category model.NotificationCategory
    title    string
    message  string
}

var notices = map[model.BookingStatus]transitionNotice{
    model.BookingAccepted:   {model.CategoryBookingAccepted, "Booking Accepted", "Your booking for %s has been accepted"},
    model.BookingRejected:   {model.CategoryBookingRejected, "Booking Rejected", "Your booking for %s was rejected"},
    model.BookingInProgress: {model.CategoryBookingStarted, "Work Started", "Work on your booking for %s has started"},
    model.BookingCompleted:  {model.CategoryBookingCompleted, "Work Completed", "Work on your booking for %s is complete"},
    model.BookingCancelled:  {model.CategoryBookingCancelled, "Booking Cancelled", "The booking for %s was cancelled"},
}

// notifyTransition sends the edge's notification to the counter-party:
// customer-facing for vendor actions, vendor-facing for a cancellation.
func (l *Lifecycle) notifyTransition(ctx context.Context, b *model.Booking, target model.BookingStatus) {
    notice, ok := notices[target]
    if !ok {
        return
    }
    payload := map[string]string{"booking_id": b.ID}
    msg := fmt.Sprintf(notice.message, b.ServiceName)
    if target == model.BookingCancelled {
        if b.VendorID == nil {
            return
        }
        v, err := l.vendors.GetByID(ctx, *b.VendorID)
        if err != nil {
            log.Printf("booking: vendor lookup for cancellation notice failed: %v", err)
            return
        }
        l.notify(ctx, v.UserID, notice.category, notice.title, msg, payload)
        return
    }
    l.notify(ctx, b.CustomerID, notice.category, notice.title, msg, payload)
}

func (l *Lifecycle) notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) {
    if err := l.notifier.Notify(ctx, userID, category, title, message, payload); err != nil {
        log.Printf("booking: notify %s failed: %v", category, err)
    }
}

func (l *Lifecycle) auditLog(ctx context.Context, action model.AuditAction, bookingID, userID string, details map[string]string) {
    if err := l.audit.Record(ctx, action, "booking", bookingID, userID, details); err != nil {
        log.Printf("booking: audit %s failed: %v", action, err)
    }
}
