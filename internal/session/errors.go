package session

import "errors"

// ErrBusy is returned when a generation or regeneration is already in
// flight; the two are mutually exclusive.
var ErrBusy = errors.New("another operation is in flight")

// ErrNotFound reports a lookup for an id the history does not contain.
var ErrNotFound = errors.New("item not found")

// ValidationError rejects input before any provider call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Reason }

// ServiceError wraps a speech provider failure. No retry is attempted.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return "speech service: " + e.Err.Error() }
func (e *ServiceError) Unwrap() error { return e.Err }

// StorageError wraps a history persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "history " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }
