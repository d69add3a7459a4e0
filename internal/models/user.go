package models

import "time"

// User is a kiosk operator allowed to log in while offline
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name,omitempty" db:"full_name"`
	Role         string    `json:"role" db:"role"`
	PasswordHash string    `json:"password_hash,omitempty" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// GetID returns the backend primary key
func (u User) GetID() int64 { return u.ID }

// Public returns a copy of the user without credential material
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
