package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing
// unique username, email, or slug.
var ErrDuplicate = errors.New("duplicate record")
