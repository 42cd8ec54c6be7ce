package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/homeservepro/marketplace/internal/model"
)

// VendorRepo provides access to vendor profiles.  The aggregate fields
// (ratings, completed jobs, earnings) are updated with single-statement
// arithmetic so concurrent updates never lose increments; allocation
// reads tolerate the resulting eventual consistency.
type VendorRepo struct {
    db *sql.DB
}

// NewVendorRepo returns a new VendorRepo bound to the given database.
func NewVendorRepo(db *sql.DB) *VendorRepo { return &VendorRepo{db: db} }

const vendorColumns = `id, user_id, name, onboarding_status, availability, services,
       pincodes, ratings, total_ratings, earnings, completed_jobs, created_at, updated_at`

// Insert stores a new vendor profile.
func (r *VendorRepo) Insert(ctx context.Context, v *model.Vendor) error {
    services, err := marshalStrings(v.Services)
    if err != nil {
        return err
    }
    pincodes, err := marshalStrings(v.Pincodes)
    if err != nil {
        return err
    }
    const q = `INSERT INTO vendors
        (id, user_id, name, onboarding_status, availability, services, pincodes,
         ratings, total_ratings, earnings, completed_jobs)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err = r.db.ExecContext(ctx, q,
        v.ID, v.UserID, v.Name, string(v.OnboardingStatus), v.Availability,
        services, pincodes, v.Ratings, v.TotalRatings, v.Earnings, v.CompletedJobs)
    return err
}

// GetByID returns a vendor profile or ErrNotFound.
func (r *VendorRepo) GetByID(ctx context.Context, id string) (*model.Vendor, error) {
    const q = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = ?`
    v, err := scanVendor(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return v, err
}

// GetByUserID returns the vendor profile backing a user account.
func (r *VendorRepo) GetByUserID(ctx context.Context, userID string) (*model.Vendor, error) {
    const q = `SELECT ` + vendorColumns + ` FROM vendors WHERE user_id = ?`
    v, err := scanVendor(r.db.QueryRowContext(ctx, q, userID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return v, err
}

// ListCandidates returns approved, available vendors for the allocation
// engine.  Service and pincode matching happens in the engine itself
// because both are stored as JSON lists; the approved+available
// pre-filter keeps the candidate set small.
func (r *VendorRepo) ListCandidates(ctx context.Context) ([]model.Vendor, error) {
    const q = `SELECT ` + vendorColumns + ` FROM vendors
        WHERE onboarding_status = ? AND availability = TRUE`
    rows, err := r.db.QueryContext(ctx, q, string(model.VendorApproved))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Vendor, 0)
    for rows.Next() {
        v, err := scanVendor(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// SetAvailability flips the vendor's availability flag.
func (r *VendorRepo) SetAvailability(ctx context.Context, id string, available bool) error {
    const q = `UPDATE vendors SET availability = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, available, id)
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

// SetOnboardingStatus moves a vendor through onboarding review.
func (r *VendorRepo) SetOnboardingStatus(ctx context.Context, id string, status model.VendorStatus) error {
    const q = `UPDATE vendors SET onboarding_status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, string(status), id)
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

// ApplyRating folds a new 1-5 rating into the running average in a
// single statement so concurrent ratings do not clobber each other.
func (r *VendorRepo) ApplyRating(ctx context.Context, id string, rating int) error {
    const q = `UPDATE vendors
        SET ratings = ((ratings * total_ratings) + ?) / (total_ratings + 1),
            total_ratings = total_ratings + 1,
            updated_at = UTC_TIMESTAMP()
        WHERE id = ?`
    _, err := r.db.ExecContext(ctx, q, rating, id)
    return err
}

// RecordCompletedJob increments the completed-jobs counter and adds the
// booking amount to the vendor's earnings.  Called when a booking
// reaches verified.
func (r *VendorRepo) RecordCompletedJob(ctx context.Context, id string, amount float64) error {
    const q = `UPDATE vendors
        SET completed_jobs = completed_jobs + 1, earnings = earnings + ?, updated_at = UTC_TIMESTAMP()
        WHERE id = ?`
    _, err := r.db.ExecContext(ctx, q, amount, id)
    return err
}

func scanVendor(row rowScanner) (*model.Vendor, error) {
    var v model.Vendor
    var status string
    var services, pincodes []byte
    if err := row.Scan(
        &v.ID, &v.UserID, &v.Name, &status, &v.Availability, &services,
        &pincodes, &v.Ratings, &v.TotalRatings, &v.Earnings, &v.CompletedJobs,
        &v.CreatedAt, &v.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    v.OnboardingStatus = model.VendorStatus(status)
    var err error
    if v.Services, err = unmarshalStrings(services); err != nil {
        return nil, err
    }
    if v.Pincodes, err = unmarshalStrings(pincodes); err != nil {
        return nil, err
    }
    return &v, nil
}
