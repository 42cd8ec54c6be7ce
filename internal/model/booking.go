package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.  The
// valid transitions between states are enforced by the booking
// package; persisting any other value is a programming error.
type BookingStatus string

const (
    BookingPending    BookingStatus = "pending"     // created, waiting for a vendor decision
    BookingAccepted   BookingStatus = "accepted"    // vendor agreed to do the job
    BookingRejected   BookingStatus = "rejected"    // vendor declined (terminal)
    BookingInProgress BookingStatus = "in_progress" // vendor started the work
    BookingCompleted  BookingStatus = "completed"   // work finished, signature window open
    BookingVerified   BookingStatus = "verified"    // customer signed off (terminal)
    BookingCancelled  BookingStatus = "cancelled"   // cancelled before completion (terminal)
)

// SignatureStatus enumerates the states of the e-signature axis.  It is
// independent from BookingStatus but coupled to it by guards: a window
// can only be opened on a completed booking, and a booking becomes
// verified only through a successful submission.
type SignatureStatus string

const (
    SignatureUnsigned  SignatureStatus = "unsigned"  // no signature requested yet
    SignatureRequested SignatureStatus = "requested" // window open, waiting for the customer
    SignatureSigned    SignatureStatus = "signed"    // customer submitted (terminal)
    SignatureExpired   SignatureStatus = "expired"   // window elapsed, escalated (terminal)
)

// Booking represents one unit of requested service work linking a
// customer, optionally a vendor, and a service.  Bookings are never
// physically deleted; terminal states are absorbing.
//
// Fields:
//  ID                   – opaque unique identifier.
//  CustomerID           – user who requested the service.
//  VendorID             – assigned vendor, nil until allocation succeeds.
//  ServiceID            – service being booked.
//  ServiceName          – denormalized service name for notifications.
//  Status               – lifecycle state (see BookingStatus).
//  SignatureStatus      – e-signature axis state (see SignatureStatus).
//  SignatureHash        – hash binding the signature to this booking, nil until signed.
//  SignatureRequestedAt – when the signature window was opened.
//  SignatureTimeoutAt   – when the open window closes.
//  SignatureSubmittedAt – when the customer submitted.
//  SignatureEscalated   – true once the timeout sweep escalated this booking.
//  Amount               – agreed price, taken from the service base price.
type Booking struct {
    ID                   string           // bookings.id
    CustomerID           string           // bookings.customer_id
    VendorID             *string          // bookings.vendor_id (nullable)
    ServiceID            string           // bookings.service_id
    ServiceName          string           // bookings.service_name
    Status               BookingStatus    // bookings.status
    SignatureStatus      SignatureStatus  // bookings.signature_status
    SignatureHash        *string          // bookings.signature_hash (nullable)
    SignatureRequestedAt *time.Time       // bookings.signature_requested_at (nullable)
    SignatureTimeoutAt   *time.Time       // bookings.signature_timeout_at (nullable)
    SignatureSubmittedAt *time.Time       // bookings.signature_submitted_at (nullable)
    SignatureEscalated   bool             // bookings.signature_escalated
    ServiceDate          string           // bookings.service_date
    ServiceTime          string           // bookings.service_time
    Address              string           // bookings.address
    Pincode              string           // bookings.pincode
    Description          string           // bookings.description
    CompletionNotes      string           // bookings.completion_notes
    BeforePhotos         []string         // bookings.before_photos (JSON)
    AfterPhotos          []string         // bookings.after_photos (JSON)
    Amount               float64          // bookings.amount
    CreatedAt            time.Time        // bookings.created_at
    UpdatedAt            time.Time        // bookings.updated_at
}
