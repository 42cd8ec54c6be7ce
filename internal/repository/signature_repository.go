package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/homeservepro/marketplace/internal/model"
)

// SignatureRepo persists signing events.  Signature rows are immutable:
// they are inserted exactly once at submission and never updated or
// deleted.  A unique key on booking_id enforces at most one signature
// per booking at the storage level.
type SignatureRepo struct {
    db *sql.DB
}

// NewSignatureRepo returns a new SignatureRepo bound to the given database.
func NewSignatureRepo(db *sql.DB) *SignatureRepo { return &SignatureRepo{db: db} }

// Insert stores a signing event.  A duplicate booking_id violates the
// unique key and surfaces as ErrConflict (MySQL error 1062).
func (r *SignatureRepo) Insert(ctx context.Context, s *model.Signature) error {
    const q = `INSERT INTO signatures
        (id, booking_id, customer_id, vendor_id, signature_data, signature_hash,
         confirmation_text, satisfaction_rating, feedback, signed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q,
        s.ID, s.BookingID, s.CustomerID, s.VendorID, s.SignatureData, s.SignatureHash,
        s.ConfirmationText, s.SatisfactionRating, s.Feedback, s.SignedAt.UTC())
    if err != nil && strings.Contains(err.Error(), "1062") {
        return ErrConflict
    }
    return err
}

// GetByBookingID returns the signature for a booking or ErrNotFound.
func (r *SignatureRepo) GetByBookingID(ctx context.Context, bookingID string) (*model.Signature, error) {
    const q = `SELECT id, booking_id, customer_id, vendor_id, signature_data, signature_hash,
                      confirmation_text, satisfaction_rating, feedback, signed_at
               FROM signatures WHERE booking_id = ?`
    var s model.Signature
    var rating sql.NullInt64
    err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
        &s.ID, &s.BookingID, &s.CustomerID, &s.VendorID, &s.SignatureData, &s.SignatureHash,
        &s.ConfirmationText, &rating, &s.Feedback, &s.SignedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if rating.Valid {
        v := int(rating.Int64)
        s.SatisfactionRating = &v
    }
    s.SignedAt = s.SignedAt.UTC()
    return &s, nil
}
