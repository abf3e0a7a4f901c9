package model

import "time"

// Roles stored in users.role.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User represents an account as stored in the `users` table.  Students
// buy courses and memberships; admins manage the catalog, orders and
// registrations.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password (never serialized).
//  Role         – Admin or User.
//  Nombre       – first name used for billing and reviews.
//  Apellidos    – last names.
//  Country      – country shown next to reviews.
//  Phone        – contact phone.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Nombre       string    `db:"nombre" json:"nombre"`
	Apellidos    string    `db:"apellidos" json:"apellidos"`
	Country      string    `db:"country" json:"country"`
	Phone        string    `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the Admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
