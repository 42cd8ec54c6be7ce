package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/homeservepro/marketplace/internal/model"
)

// NotificationRepo persists in-app notification rows.  Besides the
// usual listing operations it supports the reminder dedupe query used
// by the timeout sweep: "has this customer already been reminded about
// this booking recently?".
type NotificationRepo struct {
    db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Insert stores a notification row.
func (r *NotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
    payload, err := marshalStringMap(n.Payload)
    if err != nil {
        return err
    }
    const q = `INSERT INTO notifications (id, user_id, category, title, message, payload, is_read)
        VALUES (?, ?, ?, ?, ?, ?, FALSE)`
    _, err = r.db.ExecContext(ctx, q, n.ID, n.UserID, string(n.Category), n.Title, n.Message, payload)
    return err
}

// CountRecent counts notifications of a category sent to a user about a
// specific booking since the given time.  The booking id is stored in
// the JSON payload under "booking_id".
func (r *NotificationRepo) CountRecent(ctx context.Context, userID string, category model.NotificationCategory, bookingID string, since time.Time) (int, error) {
    const q = `SELECT COUNT(*) FROM notifications
        WHERE user_id = ? AND category = ?
          AND JSON_UNQUOTE(JSON_EXTRACT(payload, '$.booking_id')) = ?
          AND created_at > ?`
    var n int
    err := r.db.QueryRowContext(ctx, q, userID, string(category), bookingID, since.UTC()).Scan(&n)
    return n, err
}

// ListByUser returns a user's notifications, newest first, optionally
// restricted to unread ones.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, error) {
    q := `SELECT id, user_id, category, title, message, payload, is_read, created_at
          FROM notifications WHERE user_id = ?`
    if unreadOnly {
        q += ` AND is_read = FALSE`
    }
    q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Notification, 0)
    for rows.Next() {
        var n model.Notification
        var category string
        var payload []byte
        if err := rows.Scan(&n.ID, &n.UserID, &category, &n.Title, &n.Message, &payload, &n.Read, &n.CreatedAt); err != nil {
            return nil, err
        }
        n.Category = model.NotificationCategory(category)
        if n.Payload, err = unmarshalStringMap(payload); err != nil {
            return nil, err
        }
        out = append(out, n)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// MarkRead marks a single notification as read for its owner.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
    const q = `UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`
    res, err := r.db.ExecContext(ctx, q, id, userID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}
