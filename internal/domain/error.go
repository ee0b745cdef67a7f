package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Payment model / schedule errors
	ErrInvalidPaymentModel = errors.New("invalid payment model parameters")
	ErrScheduleExists      = errors.New("payment schedule already generated")

	// Reconciliation errors
	ErrInvalidTransition = errors.New("invalid schedule status transition")
	ErrDuplicateEvent    = errors.New("provider event already applied")
	ErrOrphanEvent       = errors.New("event matches no payment schedule")
	ErrAmbiguousMatch    = errors.New("fallback match is ambiguous")
	ErrEventUnprocessed  = errors.New("event recorded but not processed")

	// Infra errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrLockNotAcquired    = errors.New("could not acquire lock")
)
