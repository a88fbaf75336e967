package model

import (
    "errors"
    "strings"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
    RoleCustomer Role = "customer" // default role for self-registered users
    RoleAdmin    Role = "admin"    // elevated role: manages users, roles and products
    RoleCourier  Role = "courier"  // delivery staff, assigned by an admin
)

// ErrInvalidRole is returned by ParseRole for values outside the enumeration.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole converts s to a Role.  Matching ignores case and surrounding
// whitespace.
func ParseRole(s string) (Role, error) {
    r := Role(strings.ToLower(strings.TrimSpace(s)))
    if !r.Valid() {
        return "", ErrInvalidRole
    }
    return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleCustomer, RoleAdmin, RoleCourier:
        return true
    }
    return false
}

func (r Role) String() string { return string(r) }

// Identity is the authenticated caller attached to a request by the JWT
// middleware.
type Identity struct {
    ID   string
    Role Role
}

// IsAdmin reports whether the identity carries the elevated role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
