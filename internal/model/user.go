package model

import "time"

// Role enumerates the account roles recognized by the platform.
// Vendor actions on a booking require RoleVendor; administrative
// overrides require one of the operations roles.
type Role string

const (
    RoleCustomer   Role = "customer"
    RoleVendor     Role = "vendor"
    RoleOpsManager Role = "ops_manager"
    RoleSuperAdmin Role = "super_admin"
)

// IsOps reports whether the role carries operations authority
// (administrative overrides, escalation follow-up).
func (r Role) IsOps() bool { return r == RoleOpsManager || r == RoleSuperAdmin }

// User represents an application user record as stored in the `users`
// table.  Handlers define separate response types with JSON tags; this
// struct is used by the repository layer.
//
// Fields:
//  ID           – opaque unique identifier.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Name         – display name.
//  Phone        – contact number.
//  Role         – account role (see Role).
//  Pincode      – home pincode, used as a default for bookings.
//  Address      – default service address.
//  IsActive     – whether the account is active.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Name         string    // users.name
    Phone        string    // users.phone
    Role         Role      // users.role
    Pincode      string    // users.pincode
    Address      string    // users.address
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
