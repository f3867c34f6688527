package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no user matched the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("user already exists")
	// ErrUsernameTaken and ErrEmailTaken narrow ErrConflict to the offending column.
	ErrUsernameTaken = fmt.Errorf("%w: username already registered", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
)
