package entity

import "errors"

// Ledger errors. Handlers translate these into user-facing messages.
var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrSeatNotFound    = errors.New("seat not found")
	ErrSeatUnavailable = errors.New("seat unavailable")
	ErrVehicleDeparted = errors.New("vehicle already departed")
	ErrCorruptSeatMap  = errors.New("seat map corrupt")
)

// Booking errors.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingState    = errors.New("booking cannot change state")
	ErrForbidden       = errors.New("forbidden")
)

// Request errors. Their text is safe to show to the caller.
var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already in use")
)
