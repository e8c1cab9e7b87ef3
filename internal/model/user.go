package model

import "time"

// User represents an application user record as stored in the
// `users` table. Every recipe, tag and ingredient belongs to exactly
// one user and is deleted together with it.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address (domain part lower-cased).
//  Name         – display name.
//  PasswordHash – bcrypt hashed password.
//  IsActive     – inactive users cannot obtain tokens.
//  IsStaff      – staff flag (set for superusers).
//  IsSuperuser  – superuser flag.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	IsActive     bool      // users.is_active
	IsStaff      bool      // users.is_staff
	IsSuperuser  bool      // users.is_superuser
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
