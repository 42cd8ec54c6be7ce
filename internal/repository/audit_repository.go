package repository

import (
    "context"
    "database/sql"

    "github.com/google/uuid"

    "github.com/homeservepro/marketplace/internal/model"
)

// AuditRepo is a write-only sink for audit entries.  Entries are never
// updated or deleted; reads happen through operational tooling outside
// this service.
type AuditRepo struct {
    db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends one audit entry.  UserID is "system" for changes made
// by background tasks such as the timeout sweep.
func (r *AuditRepo) Record(ctx context.Context, action model.AuditAction, entityType, entityID, userID string, details map[string]string) error {
    payload, err := marshalStringMap(details)
    if err != nil {
        return err
    }
    const q = `INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, details, ip_address)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    _, err = r.db.ExecContext(ctx, q, uuid.NewString(), string(action), entityType, entityID, userID, payload, "")
    return err
}
