package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/homeservepro/marketplace/internal/model"
)

// ServiceRepo provides read access to the service catalog.
type ServiceRepo struct {
    db *sql.DB
}

// NewServiceRepo returns a new ServiceRepo bound to the given database.
func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

const serviceColumns = `id, name, category, description, base_price, duration_minutes,
       active, created_at, updated_at`

// Insert stores a new catalog entry.
func (r *ServiceRepo) Insert(ctx context.Context, s *model.Service) error {
    const q = `INSERT INTO services
        (id, name, category, description, base_price, duration_minutes, active)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q,
        s.ID, s.Name, s.Category, s.Description, s.BasePrice, s.DurationMinutes, s.Active)
    return err
}

// GetByID returns one service or ErrNotFound.
func (r *ServiceRepo) GetByID(ctx context.Context, id string) (*model.Service, error) {
    const q = `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
    s, err := scanService(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return s, err
}

// ListActive returns all active services ordered by name.
func (r *ServiceRepo) ListActive(ctx context.Context) ([]model.Service, error) {
    const q = `SELECT ` + serviceColumns + ` FROM services WHERE active = TRUE ORDER BY name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Service, 0)
    for rows.Next() {
        s, err := scanService(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

func scanService(row rowScanner) (*model.Service, error) {
    var s model.Service
    if err := row.Scan(
        &s.ID, &s.Name, &s.Category, &s.Description, &s.BasePrice,
        &s.DurationMinutes, &s.Active, &s.CreatedAt, &s.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    return &s, nil
}
