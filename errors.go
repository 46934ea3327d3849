package pagewatch

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("pagewatch: no store configured")
	ErrNoRenderer      = errors.New("pagewatch: no renderer configured")
	ErrMigrationFailed = errors.New("pagewatch: migration failed")

	// Not found errors.
	ErrJobNotFound    = errors.New("pagewatch: job not found")
	ErrResultNotFound = errors.New("pagewatch: result not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("pagewatch: job already exists")

	// Configuration errors. Descriptors failing validation are rejected at
	// load time and never scheduled.
	ErrInvalidDescriptor = errors.New("pagewatch: invalid job descriptor")
)
