package domain

import "time"

// User is an account allowed to drive the download server when auth is
// enabled.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
