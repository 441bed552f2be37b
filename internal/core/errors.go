package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrMissingID          = errors.New("id is required")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrEmptyName          = errors.New("name is required")
	ErrNameTooLong        = fmt.Errorf("name too long (max %d characters)", MaxNameLength)
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

// ValidationError marks input rejected before reaching the store.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
