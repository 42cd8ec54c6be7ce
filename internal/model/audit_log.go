package model

import "time"

// AuditAction tags an audit entry with the kind of change it records.
type AuditAction string

const (
    AuditCreate       AuditAction = "create"
    AuditUpdate       AuditAction = "update"
    AuditStatusChange AuditAction = "status_change"
    AuditSignature    AuditAction = "signature"
    AuditEscalation   AuditAction = "escalation"
)

// AuditLog is a write-only record of a state-changing action.  Entries
// are never updated or deleted; UserID is "system" for changes made by
// background tasks.
type AuditLog struct {
    ID         string            // audit_logs.id
    Action     AuditAction       // audit_logs.action
    EntityType string            // audit_logs.entity_type
    EntityID   string            // audit_logs.entity_id
    UserID     string            // audit_logs.user_id
    Details    map[string]string // audit_logs.details (JSON)
    IPAddress  string            // audit_logs.ip_address
    CreatedAt  time.Time         // audit_logs.created_at
}
