package model

import "time"

// NotificationCategory is the closed set of event categories the
// dispatcher accepts.  Using a typed constant per category removes the
// possibility of a typo'd category string reaching storage.
type NotificationCategory string

const (
    CategoryBookingCreated     NotificationCategory = "booking_created"
    CategoryBookingAccepted    NotificationCategory = "booking_accepted"
    CategoryBookingRejected    NotificationCategory = "booking_rejected"
    CategoryBookingStarted     NotificationCategory = "booking_started"
    CategoryBookingCompleted   NotificationCategory = "booking_completed"
    CategoryBookingCancelled   NotificationCategory = "booking_cancelled"
    CategoryBookingReassigned  NotificationCategory = "booking_reassigned"
    CategorySignatureRequired  NotificationCategory = "signature_required"
    CategorySignatureCompleted NotificationCategory = "signature_completed"
    CategorySignatureReminder  NotificationCategory = "signature_reminder"
    CategoryEscalation         NotificationCategory = "escalation"
)

// Notification is an in-app notification row.  The dispatcher persists
// one of these for every event it accepts, regardless of whether the
// best-effort broker delivery succeeds.
type Notification struct {
    ID        string               // notifications.id
    UserID    string               // notifications.user_id
    Category  NotificationCategory // notifications.category
    Title     string               // notifications.title
    Message   string               // notifications.message
    Payload   map[string]string    // notifications.payload (JSON)
    Read      bool                 // notifications.is_read
    CreatedAt time.Time            // notifications.created_at
}
