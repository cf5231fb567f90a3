package models

import "scifind-backend/internal/errors"

// newValidationError is a thin wrapper so each model's Validate method reads
// like a single call rather than re-deriving the errors package's builder
// chain every time.
func newValidationError(component, message, field string, value interface{}) error {
	return errors.NewValidationError(component, message, field, value)
}
