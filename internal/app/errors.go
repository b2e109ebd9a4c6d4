package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrRecordNotFound  = errors.New("semester record not found")
	ErrRecordLocked    = errors.New("semester record is locked")
	ErrEntryNotFound   = errors.New("grade entry not found")
	ErrScoreOutOfRange = errors.New("score out of range")
	ErrInvalidKey      = errors.New("invalid selection key")
	ErrInvalidRecord   = errors.New("invalid semester record")
)
