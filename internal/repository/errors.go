// Package repository defines the user store capability and its
// implementations.  The sentinel values below let higher layers tell
// expected outcomes apart from infrastructure failures without knowing
// which backend produced them.
package repository

import "errors"

// ErrNotFound is returned when no user matches the lookup.  Services
// translate it into a 404 or, for login, into a credentials failure.
var ErrNotFound = errors.New("user not found")

// ErrDuplicate is returned when an insert or update would violate the
// unique handle or email constraint.  It is the only race guard between
// two simultaneous registrations of the same handle, so every backend
// must report it.
var ErrDuplicate = errors.New("username or email already exists")
