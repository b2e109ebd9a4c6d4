package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidKey    = errors.New("invalid selection key")
	ErrInvalidRecord = errors.New("invalid semester record")

	ErrRecordNotFound = errors.New("semester record not found")
)
