// Package notify implements the notification dispatcher.  Every
// accepted event is persisted as an in-app notification row and then
// forwarded to the message broker for best-effort delivery over
// external channels.  Broker failures are logged, never propagated:
// delivery must not block or fail the caller's transaction.
package notify

import (
    "context"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/homeservepro/marketplace/internal/model"
    "github.com/homeservepro/marketplace/internal/queue"
)

// Store is the persistence the dispatcher needs: inserting one
// notification row.
type Store interface {
    Insert(ctx context.Context, n *model.Notification) error
}

// Dispatcher persists notifications and publishes them to the broker.
type Dispatcher struct {
    store Store
    now   func() time.Time
}

// NewDispatcher constructs a Dispatcher backed by the given store.
func NewDispatcher(store Store) *Dispatcher {
    if store == nil {
        panic("nil store passed to NewDispatcher")
    }
    return &Dispatcher{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Notify records an in-app notification for the user and forwards the
// event to the broker.  The broker publish happens in the background;
// only the persistence error is returned, and callers on non-critical
// paths are expected to log rather than fail on it.
func (d *Dispatcher) Notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) error {
    n := &model.Notification{
        ID:        uuid.NewString(),
        UserID:    userID,
        Category:  category,
        Title:     title,
        Message:   message,
        Payload:   payload,
        CreatedAt: d.now(),
    }
    if err := d.store.Insert(ctx, n); err != nil {
        return err
    }

    ev := queue.NotificationEvent{
        NotificationID: n.ID,
        UserID:         n.UserID,
        Category:       string(n.Category),
        Title:          n.Title,
        Message:        n.Message,
        Payload:        n.Payload,
        CreatedAt:      n.CreatedAt.Format(time.RFC3339),
    }
    // Detached from the request context: the caller's transaction must
    // not wait on the broker.
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := queue.PublishNotification(ctx, ev); err != nil {
            log.Printf("notify: broker publish failed for notification %s: %v", n.ID, err)
        }
    }()
    return nil
}
