package services

import (
	"errors"
	"fmt"
)

// ErrDuplicateIdentity is returned when a registration collides with an
// existing username or email (case-sensitive exact match).
var ErrDuplicateIdentity = errors.New("username or email already exists")

// ErrInvalidCredentials is returned for any login failure. It deliberately
// does not distinguish an unknown identifier from a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken covers every token verification failure at the API
// boundary. The wrapped variants below keep the failure reason available
// for logging.
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired marks a token whose expiry has elapsed.
var ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

// ErrTokenMalformed marks a token that failed parsing or signature checks.
var ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)

// ErrValidation is returned for malformed input (missing fields, negative
// scores, and the like).
var ErrValidation = errors.New("invalid input")

// ErrCredentialField is returned when a generic profile update tries to
// touch the stored credential. Password changes must go through
// ChangePassword, which verifies and re-hashes.
var ErrCredentialField = errors.New("credential fields cannot be updated here")
