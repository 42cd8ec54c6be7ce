// Package monitor implements the periodic signature timeout sweep: it
// escalates bookings whose signing window has elapsed, reminds
// customers whose window is about to elapse, and reports aggregate
// signature statistics.  One sweep cycle is a single Run call; the
// HTTP server drives it on a ticker and the sweep CLI drives it once.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/homeservepro/marketplace/internal/model"
)

// Reminder and statistics horizons.  Reminders go to customers whose
// window closes within reminderHorizon, at most once per
// reminderCooldown per booking.
const (
	reminderHorizon     = 12 * time.Hour
	reminderCooldown    = 6 * time.Hour
	expiringSoonHorizon = 24 * time.Hour
)

// BookingStore is the read surface the sweep needs over bookings.
type BookingStore interface {
	ListExpiredSignatures(ctx context.Context, now time.Time) ([]model.Booking, error)
	ListExpiringSignatures(ctx context.Context, now, until time.Time) ([]model.Booking, error)
	CountBySignatureStatus(ctx context.Context, status model.SignatureStatus, escalated *bool) (int, error)
	CountExpiringSignatures(ctx context.Context, now, until time.Time) (int, error)
}

// Escalator performs the per-booking escalation state change.  The
// boolean reports whether this call won the conditional update; the
// sweep notifies and audits only for bookings it actually escalated, so
// two overlapping sweeps never produce duplicate escalation notices.
type Escalator interface {
	Escalate(ctx context.Context, bookingID string) (bool, error)
}

// VendorStore resolves a vendor profile to its backing user account.
type VendorStore interface {
	GetByID(ctx context.Context, id string) (*model.Vendor, error)
}

// UserStore lists the operations users who receive escalation notices.
type UserStore interface {
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

// NotificationStore answers the reminder dedupe question: how many
// notifications of a category referencing a booking a user received
// since a cutoff.
type NotificationStore interface {
	CountRecent(ctx context.Context, userID string, category model.NotificationCategory, bookingID string, since time.Time) (int, error)
}

// Notifier dispatches a typed event to a user, best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) error
}

// AuditSink records state-changing actions.
type AuditSink interface {
	Record(ctx context.Context, action model.AuditAction, entityType, entityID, userID string, details map[string]string) error
}

// Statistics is the aggregate signature picture reported at the end of
// every sweep cycle.
type Statistics struct {
	TotalPending int `json:"total_pending"` // windows open, not yet escalated
	TotalExpired int `json:"total_expired"` // escalated, awaiting ops follow-up
	TotalSigned  int `json:"total_signed"`
	ExpiringSoon int `json:"expiring_soon"` // open windows closing within 24h
}

// Summary is the result of one sweep cycle.
type Summary struct {
	Escalated     int        `json:"escalated"`
	RemindersSent int        `json:"reminders_sent"`
	Statistics    Statistics `json:"statistics"`
	RanAt         time.Time  `json:"ran_at"`
}

// Monitor runs sweep cycles against the injected stores.
type Monitor struct {
	bookings      BookingStore
	escalator     Escalator
	vendors       VendorStore
	users         UserStore
	notifications NotificationStore
	notifier      Notifier
	audit         AuditSink
	now           func() time.Time
}

// NewMonitor constructs a Monitor.  All dependencies must be non-nil.
func NewMonitor(bookings BookingStore, escalator Escalator, vendors VendorStore, users UserStore, notifications NotificationStore, notifier Notifier, audit AuditSink) *Monitor {
	if bookings == nil || escalator == nil || vendors == nil || users == nil || notifications == nil || notifier == nil || audit == nil {
		panic("nil dependency passed to NewMonitor")
	}
	return &Monitor{
		bookings:      bookings,
		escalator:     escalator,
		vendors:       vendors,
		users:         users,
		notifications: notifications,
		notifier:      notifier,
		audit:         audit,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one sweep cycle: escalations first, then reminders, then
// statistics.  A failure on one booking is logged and the sweep moves
// on; only an unavailable store aborts the cycle with an error.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	now := m.now()
	sum := Summary{RanAt: now}

	escalated, err := m.runEscalations(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("escalation pass: %w", err)
	}
	sum.Escalated = escalated

	reminders, err := m.runReminders(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("reminder pass: %w", err)
	}
	sum.RemindersSent = reminders

	stats, err := m.collectStatistics(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("statistics: %w", err)
	}
	sum.Statistics = stats
	return sum, nil
}

// Start runs sweep cycles on the given interval until ctx is cancelled.
// Each cycle's summary is logged; cycle errors are logged and the loop
// keeps going.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("monitor: sweep loop started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("monitor: sweep loop stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			sum, err := m.Run(ctx)
			if err != nil {
				log.Printf("monitor: sweep cycle failed: %v", err)
				continue
			}
			log.Printf("monitor: sweep done, escalated=%d reminders=%d pending=%d expired=%d",
				sum.Escalated, sum.RemindersSent, sum.Statistics.TotalPending, sum.Statistics.TotalExpired)
		}
	}
}

func (m *Monitor) runEscalations(ctx context.Context, now time.Time) (int, error) {
	overdue, err := m.bookings.ListExpiredSignatures(ctx, now)
	if err != nil {
		return 0, err
	}
	escalated := 0
	for i := range overdue {
		b := &overdue[i]
		won, err := m.escalator.Escalate(ctx, b.ID)
		if err != nil {
			log.Printf("monitor: escalate booking %s failed: %v", b.ID, err)
			continue
		}
		if !won {
			// Another sweep (or instance) got there first; it owns
			// the notifications.
			continue
		}
		escalated++
		m.notifyEscalation(ctx, b)
		m.auditLog(ctx, b.ID, map[string]string{
			"reason":     "signature window elapsed",
			"timeout_at": formatTime(b.SignatureTimeoutAt),
		})
	}
	return escalated, nil
}

// notifyEscalation fans the escalation out: every operations user gets
// an actionable notice, the customer is told support will follow up,
// and the vendor is told payment is on hold pending verification.
func (m *Monitor) notifyEscalation(ctx context.Context, b *model.Booking) {
	payload := map[string]string{"booking_id": b.ID}

	for _, role := range []model.Role{model.RoleOpsManager, model.RoleSuperAdmin} {
		ops, err := m.users.ListByRole(ctx, role)
		if err != nil {
			log.Printf("monitor: list %s users failed: %v", role, err)
			continue
		}
		for _, u := range ops {
			m.notify(ctx, u.ID, model.CategoryEscalation,
				"Signature Timeout Escalation",
				fmt.Sprintf("Booking %s signature window expired without a customer sign-off. Manual verification required: %s", b.ID, b.ServiceName),
				payload)
		}
	}

	m.notify(ctx, b.CustomerID, model.CategoryEscalation,
		"Signature Window Expired",
		fmt.Sprintf("The signature window for your %s booking has expired. Our support team will follow up with you.", b.ServiceName),
		payload)

	if b.VendorID != nil {
		v, err := m.vendors.GetByID(ctx, *b.VendorID)
		if err != nil {
			log.Printf("monitor: vendor lookup for booking %s failed: %v", b.ID, err)
			return
		}
		m.notify(ctx, v.UserID, model.CategoryEscalation,
			"Payment On Hold",
			fmt.Sprintf("The customer did not sign off on booking %s in time. Payment is on hold pending verification.", b.ID),
			payload)
	}
}

func (m *Monitor) runReminders(ctx context.Context, now time.Time) (int, error) {
	expiring, err := m.bookings.ListExpiringSignatures(ctx, now, now.Add(reminderHorizon))
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range expiring {
		b := &expiring[i]
		if b.SignatureTimeoutAt == nil {
			continue
		}
		recent, err := m.notifications.CountRecent(ctx, b.CustomerID, model.CategorySignatureReminder, b.ID, now.Add(-reminderCooldown))
		if err != nil {
			log.Printf("monitor: reminder dedupe check for booking %s failed: %v", b.ID, err)
			continue
		}
		if recent > 0 {
			continue
		}
		hoursLeft := int(b.SignatureTimeoutAt.Sub(now).Hours()) // floored
		m.notify(ctx, b.CustomerID, model.CategorySignatureReminder,
			"Signature Reminder",
			fmt.Sprintf("Your signature for %s expires in %d hours. Please sign off to release the vendor's payment.", b.ServiceName, hoursLeft),
			map[string]string{
				"booking_id":      b.ID,
				"hours_remaining": fmt.Sprintf("%d", hoursLeft),
			})
		sent++
	}
	return sent, nil
}

func (m *Monitor) collectStatistics(ctx context.Context, now time.Time) (Statistics, error) {
	var stats Statistics
	var err error

	notEscalated := false
	stats.TotalPending, err = m.bookings.CountBySignatureStatus(ctx, model.SignatureRequested, &notEscalated)
	if err != nil {
		return stats, err
	}
	escalatedOnly := true
	stats.TotalExpired, err = m.bookings.CountBySignatureStatus(ctx, model.SignatureExpired, &escalatedOnly)
	if err != nil {
		return stats, err
	}
	stats.TotalSigned, err = m.bookings.CountBySignatureStatus(ctx, model.SignatureSigned, nil)
	if err != nil {
		return stats, err
	}
	stats.ExpiringSoon, err = m.bookings.CountExpiringSignatures(ctx, now, now.Add(expiringSoonHorizon))
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func (m *Monitor) notify(ctx context.Context, userID string, category model.NotificationCategory, title, message string, payload map[string]string) {
	if err := m.notifier.Notify(ctx, userID, category, title, message, payload); err != nil {
		log.Printf("monitor: notify %s failed: %v", category, err)
	}
}

func (m *Monitor) auditLog(ctx context.Context, bookingID string, details map[string]string) {
	if err := m.audit.Record(ctx, model.AuditEscalation, "booking", bookingID, "system", details); err != nil {
		log.Printf("monitor: audit escalation failed: %v", err)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
