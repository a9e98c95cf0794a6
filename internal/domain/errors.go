package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrListingNotFound  = errors.New("listing not found")
	ErrRequestNotFound  = errors.New("request not found")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrEmailRequired    = errors.New("email required")
)

// CapacityError reports how many portions were still open when an admission
// or a strict accept was refused.
type CapacityError struct {
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: only %d portion(s) available", ErrCapacityExceeded, e.Available)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ValidationError lists the request fields that were missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing or invalid fields %v", ErrValidation, e.Fields)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
