package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/utils"
)

// UserRepo provides access to user accounts.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = `id, email, password_hash, name, phone, role, pincode, address,
       is_active, created_at, updated_at`

// Create inserts a user and returns its generated ID.
func (r *UserRepo) Create(ctx context.Context, email, password, name, phone string, role model.Role, pincode, address string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, phone, role, pincode, address) VALUES (?,?,?,?,?,?,?,?)",
		id, email, hash, name, phone, string(role), pincode, address)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=? LIMIT 1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=? LIMIT 1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListByRole returns all active users carrying the given role.  The
// timeout sweep uses this to notify every operations user about an
// escalation.
func (r *UserRepo) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE role=? AND is_active=TRUE`
	rows, err := r.DB.QueryContext(ctx, q, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &role, &u.Pincode,
		&u.Address, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
