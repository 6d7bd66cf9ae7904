package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidEntity = errors.New("invalid entity reference")
	ErrClosed        = errors.New("store closed")
)
