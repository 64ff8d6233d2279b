package domain

import "errors"

var (
	ErrStorageFailure    = errors.New("storage failure")
	ErrRecordMalformed   = errors.New("persisted record is malformed")
	ErrNotFound          = errors.New("key not found")
	ErrUnknownTankShape  = errors.New("unknown tank shape")
	ErrSensorUnavailable = errors.New("distance sensor unavailable")
)
