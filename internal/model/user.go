package model

import (
    "strings"
    "time"
)

// User represents a registered principal.  The same struct is used by
// every store implementation: db tags map the `users` table columns for
// the MySQL store, json tags shape API responses.  PasswordHash is never
// serialized.
//
// Fields:
//  ID           – opaque identifier (uuid for SQL/memory, ObjectID hex for Mongo).
//  Username     – unique handle.
//  Email        – unique contact address, stored lower-cased.
//  FirstName    – given name.
//  LastName     – family name.
//  Address      – postal address.
//  Phone        – contact phone number.
//  PasswordHash – bcrypt hash of the password.
//  Role         – one of the closed Role values.
//  Verified     – whether the email address has been confirmed.
type User struct {
    ID           string    `db:"id" json:"id"`
    Username     string    `db:"username" json:"username"`
    Email        string    `db:"email" json:"email"`
    FirstName    string    `db:"first_name" json:"first_name"`
    LastName     string    `db:"last_name" json:"last_name"`
    Address      string    `db:"address" json:"address"`
    Phone        string    `db:"phone" json:"phone"`
    PasswordHash string    `db:"password_hash" json:"-"`
    Role         Role      `db:"role" json:"role"`
    Verified     bool      `db:"verified" json:"verified"`
    CreatedAt    time.Time `db:"created_at" json:"created_at"`
    UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserPatch lists the mutable columns of a user.  Nil fields are left
// untouched by UpdateByID.
type UserPatch struct {
    FirstName *string
    LastName  *string
    Email     *string
    Address   *string
    Phone     *string
    Role      *Role
    Verified  *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
    return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
        p.Address == nil && p.Phone == nil && p.Role == nil && p.Verified == nil
}

// Apply copies the non-nil fields of the patch onto u.
func (p UserPatch) Apply(u *User) {
    if p.FirstName != nil {
        u.FirstName = *p.FirstName
    }
    if p.LastName != nil {
        u.LastName = *p.LastName
    }
    if p.Email != nil {
        u.Email = NormalizeEmail(*p.Email)
    }
    if p.Address != nil {
        u.Address = *p.Address
    }
    if p.Phone != nil {
        u.Phone = *p.Phone
    }
    if p.Role != nil {
        u.Role = *p.Role
    }
    if p.Verified != nil {
        u.Verified = *p.Verified
    }
}

// NormalizeEmail trims and lower-cases an address so uniqueness checks
// are case-insensitive.
func NormalizeEmail(s string) string {
    return strings.ToLower(strings.TrimSpace(s))
}
