package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/homeservepro/marketplace/internal/model"
)

// BookingRepo provides CRUD and atomic state-transition operations for
// bookings.  Every state-changing statement is a conditional update
// ("set new state only where the row still carries the expected state")
// so that concurrent writers, say a customer submitting a signature
// versus the timeout sweep escalating the same booking, resolve
// deterministically: exactly one wins, the other observes ErrConflict.
// All timestamp fields are stored in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, customer_id, vendor_id, service_id, service_name, status,
       signature_status, signature_hash, signature_requested_at, signature_timeout_at,
       signature_submitted_at, signature_escalated, service_date, service_time,
       address, pincode, description, completion_notes, before_photos, after_photos,
       amount, created_at, updated_at`

// Insert stores a new booking row.  The caller populates the ID and
// all content fields; CreatedAt/UpdatedAt are set by the database.
func (r *BookingRepo) Insert(ctx context.Context, b *model.Booking) error {
    before, err := marshalStrings(b.BeforePhotos)
    if err != nil {
        return err
    }
    after, err := marshalStrings(b.AfterPhotos)
    if err != nil {
        return err
    }
    const q = `INSERT INTO bookings
        (id, customer_id, vendor_id, service_id, service_name, status, signature_status,
         signature_escalated, service_date, service_time, address, pincode, description,
         completion_notes, before_photos, after_photos, amount)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err = r.db.ExecContext(ctx, q,
        b.ID, b.CustomerID, b.VendorID, b.ServiceID, b.ServiceName, string(b.Status),
        string(b.SignatureStatus), b.SignatureEscalated, b.ServiceDate, b.ServiceTime,
        b.Address, b.Pincode, b.Description, b.CompletionNotes, before, after, b.Amount)
    return err
}

// GetByID returns a single booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return b, err
}

// UpdateStatus transitions a booking from the expected status to the
// next one.  It returns ErrConflict when the row no longer carries the
// expected status, which means another writer got there first.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, expected, next model.BookingStatus) error {
    const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, string(next), id, string(expected))
    if err != nil {
        return err
    }
    return oneRowOrConflict(res)
}

// CompleteWork atomically moves a booking from the expected status to
// completed while recording the completion notes and photo references.
func (r *BookingRepo) CompleteWork(ctx context.Context, id string, expected model.BookingStatus, notes string, beforePhotos, afterPhotos []string) error {
    before, err := marshalStrings(beforePhotos)
    if err != nil {
        return err
    }
    after, err := marshalStrings(afterPhotos)
    if err != nil {
        return err
    }
    const q = `UPDATE bookings
        SET status = ?, completion_notes = ?, before_photos = ?, after_photos = ?, updated_at = UTC_TIMESTAMP()
        WHERE id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q,
        string(model.BookingCompleted), notes, before, after, id, string(expected))
    if err != nil {
        return err
    }
    return oneRowOrConflict(res)
}

// AssignVendor sets the vendor on a booking without touching its
// status.  Used by allocation at creation time and by the ops reassign
// override.
func (r *BookingRepo) AssignVendor(ctx context.Context, id, vendorID string) error {
    const q = `UPDATE bookings SET vendor_id = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, vendorID, id)
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

// OpenSignatureWindow opens (or idempotently extends) the signature
// window on a completed booking.  The guard admits only bookings that
// are completed with an unsigned or already-requested signature axis,
// so a signed or escalated booking can never be re-opened.
func (r *BookingRepo) OpenSignatureWindow(ctx context.Context, id string, requestedAt, timeoutAt time.Time) error {
    const q = `UPDATE bookings
        SET signature_status = ?, signature_requested_at = ?, signature_timeout_at = ?, updated_at = UTC_TIMESTAMP()
        WHERE id = ? AND status = ? AND signature_status IN (?, ?) AND signature_escalated = FALSE`
    res, err := r.db.ExecContext(ctx, q,
        string(model.SignatureRequested), requestedAt.UTC(), timeoutAt.UTC(), id,
        string(model.BookingCompleted), string(model.SignatureUnsigned), string(model.SignatureRequested))
    if err != nil {
        return err
    }
    return oneRowOrConflict(res)
}

// MarkSigned finalizes the signature axis and the booking status in one
// conditional update: signed + verified, recording the hash and the
// submission time.  Racing against the sweep's MarkExpired, exactly one
// of the two statements matches the row.
func (r *BookingRepo) MarkSigned(ctx context.Context, id, hash string, submittedAt time.Time) error {
    const q = `UPDATE bookings
        SET signature_status = ?, status = ?, signature_hash = ?, signature_submitted_at = ?, updated_at = UTC_TIMESTAMP()
        WHERE id = ? AND status = ? AND signature_status IN (?, ?) AND signature_escalated = FALSE`
    res, err := r.db.ExecContext(ctx, q,
        string(model.SignatureSigned), string(model.BookingVerified), hash, submittedAt.UTC(), id,
        string(model.BookingCompleted), string(model.SignatureUnsigned), string(model.SignatureRequested))
    if err != nil {
        return err
    }
    return oneRowOrConflict(res)
}

// MarkExpired escalates an overdue signature window.  The guard makes
// the operation naturally idempotent: a second invocation (or a sweep
// re-observing the row before the first write is visible) matches zero
// rows and reports ErrConflict instead of escalating twice.
func (r *BookingRepo) MarkExpired(ctx context.Context, id string, now time.Time) error {
    const q = `UPDATE bookings
        SET signature_status = ?, signature_escalated = TRUE, updated_at = UTC_TIMESTAMP()
        WHERE id = ? AND signature_status = ? AND signature_escalated = FALSE AND signature_timeout_at < ?`
    res, err := r.db.ExecContext(ctx, q,
        string(model.SignatureExpired), id, string(model.SignatureRequested), now.UTC())
    if err != nil {
        return err
    }
    return oneRowOrConflict(res)
}

// ListExpiredSignatures returns bookings whose signature window has
// elapsed but which have not been escalated yet.  The sweep escalates
// each of them.
func (r *BookingRepo) ListExpiredSignatures(ctx context.Context, now time.Time) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE signature_status = ? AND signature_escalated = FALSE AND signature_timeout_at < ?
        ORDER BY signature_timeout_at ASC`
    return r.listBookings(ctx, q, string(model.SignatureRequested), now.UTC())
}

// ListExpiringSignatures returns bookings whose open signature window
// ends inside (now, until).  The sweep sends reminders for these.
func (r *BookingRepo) ListExpiringSignatures(ctx context.Context, now, until time.Time) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE signature_status = ? AND signature_escalated = FALSE
          AND signature_timeout_at > ? AND signature_timeout_at < ?
        ORDER BY signature_timeout_at ASC`
    return r.listBookings(ctx, q, string(model.SignatureRequested), now.UTC(), until.UTC())
}

// ListByCustomer returns a customer's bookings, newest first.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID string, offset, limit int) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE customer_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
    return r.listBookings(ctx, q, customerID, limit, offset)
}

// ListByVendor returns a vendor's bookings, newest first.
func (r *BookingRepo) ListByVendor(ctx context.Context, vendorID string, offset, limit int) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE vendor_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
    return r.listBookings(ctx, q, vendorID, limit, offset)
}

// ListByStatus returns bookings in a given lifecycle state, newest
// first.  Used by the ops live-bookings view.
func (r *BookingRepo) ListByStatus(ctx context.Context, status model.BookingStatus, offset, limit int) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
    return r.listBookings(ctx, q, string(status), limit, offset)
}

// CountBySignatureStatus counts bookings on the signature axis,
// optionally restricted to escalated or non-escalated rows.
func (r *BookingRepo) CountBySignatureStatus(ctx context.Context, status model.SignatureStatus, escalated *bool) (int, error) {
    q := `SELECT COUNT(*) FROM bookings WHERE signature_status = ?`
    args := []interface{}{string(status)}
    if escalated != nil {
        q += ` AND signature_escalated = ?`
        args = append(args, *escalated)
    }
    var n int
    err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
    return n, err
}

// CountExpiringSignatures counts open windows ending inside (now, until).
func (r *BookingRepo) CountExpiringSignatures(ctx context.Context, now, until time.Time) (int, error) {
    const q = `SELECT COUNT(*) FROM bookings
        WHERE signature_status = ? AND signature_escalated = FALSE
          AND signature_timeout_at > ? AND signature_timeout_at < ?`
    var n int
    err := r.db.QueryRowContext(ctx, q, string(model.SignatureRequested), now.UTC(), until.UTC()).Scan(&n)
    return n, err
}

func (r *BookingRepo) listBookings(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
    var b model.Booking
    var vendorID, hash sql.NullString
    var requestedAt, timeoutAt, submittedAt sql.NullTime
    var before, after []byte
    var status, sigStatus string
    if err := row.Scan(
        &b.ID, &b.CustomerID, &vendorID, &b.ServiceID, &b.ServiceName, &status,
        &sigStatus, &hash, &requestedAt, &timeoutAt,
        &submittedAt, &b.SignatureEscalated, &b.ServiceDate, &b.ServiceTime,
        &b.Address, &b.Pincode, &b.Description, &b.CompletionNotes, &before, &after,
        &b.Amount, &b.CreatedAt, &b.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    b.Status = model.BookingStatus(status)
    b.SignatureStatus = model.SignatureStatus(sigStatus)
    if vendorID.Valid {
        v := vendorID.String
        b.VendorID = &v
    }
    if hash.Valid {
        h := hash.String
        b.SignatureHash = &h
    }
    if requestedAt.Valid {
        t := requestedAt.Time.UTC()
        b.SignatureRequestedAt = &t
    }
    if timeoutAt.Valid {
        t := timeoutAt.Time.UTC()
        b.SignatureTimeoutAt = &t
    }
    if submittedAt.Valid {
        t := submittedAt.Time.UTC()
        b.SignatureSubmittedAt = &t
    }
    var err error
    if b.BeforePhotos, err = unmarshalStrings(before); err != nil {
        return nil, err
    }
    if b.AfterPhotos, err = unmarshalStrings(after); err != nil {
        return nil, err
    }
    return &b, nil
}

func oneRowOrConflict(res sql.Result) error {
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}
