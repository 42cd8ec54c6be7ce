// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published for every notification the dispatcher
// accepts. It carries enough information for downstream consumers
// (push/SMS/email gateways, analytics) to deliver or record the event
// without querying the primary database.
type NotificationEvent struct {
    NotificationID string            `json:"notification_id"`
    UserID         string            `json:"user_id"`
    Category       string            `json:"category"`
    Title          string            `json:"title"`
    Message        string            `json:"message"`
    Payload        map[string]string `json:"payload,omitempty"`
    CreatedAt      string            `json:"created_at"`
}
