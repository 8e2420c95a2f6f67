package types

import "time"

// User represents an account in the system.
// It contains identity, progression, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	// Uniqueness is case-sensitive exact match.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. Unique, case-sensitive.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level or role
	// within the system (e.g., "admin", "user").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Level is the user's progression level, derived from Experience:
	// level = experience/1000 + 1. Always >= 1.
	Level int `json:"level" db:"level"`

	// Experience is the total experience accumulated from score
	// submissions. Never decreases.
	Experience int `json:"experience" db:"experience"`

	// Coins is the user's currency balance, earned from score
	// submissions and level-up bonuses.
	Coins int `json:"coins" db:"coins"`

	// Achievements is the ordered list of achievement tags granted to
	// the user. Order reflects grant time and is preserved for display.
	Achievements []string `json:"achievements" db:"achievements"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin time.Time `json:"last_login" db:"last_login"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAchievement reports whether the user already holds the given tag.
func (u User) HasAchievement(tag string) bool {
	for _, a := range u.Achievements {
		if a == tag {
			return true
		}
	}
	return false
}

// LevelForExperience returns the level implied by a total experience value.
func LevelForExperience(experience int) int {
	if experience < 0 {
		return 1
	}
	return experience/1000 + 1
}
