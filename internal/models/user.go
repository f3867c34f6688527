package models

import "time"

// User represents a user in the system
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUserRequest is the registration payload
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,printable,excludesall=/"`
	Email    string `json:"email" validate:"required,printable,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
