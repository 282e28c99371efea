package domain

import "errors"

var (
	// ErrNotFound covers both a missing row and a row owned by someone else.
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
