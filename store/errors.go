package store

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrInvalidReason = errors.New("invalid quarantine reason")
)
