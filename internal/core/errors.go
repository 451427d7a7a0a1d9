package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeStoreUnavailable = "store_unavailable"
)

var (
	ErrEmptyUsername = errors.New("username must be a non-empty string")
	ErrEmptyText     = errors.New("text must be a non-empty string")
	ErrInvalidRoom   = errors.New("room must be either 'public' or 'founders'")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil && e.Code == ErrCodeStoreUnavailable {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func validationError(err error) *CoreError {
	return &CoreError{Code: ErrCodeValidation, Message: err.Error(), Err: err}
}

func storeError(msg string, err error) *CoreError {
	return &CoreError{Code: ErrCodeStoreUnavailable, Message: msg, Err: err}
}

// IsValidation reports whether err was caused by caller-supplied input.
func IsValidation(err error) bool {
	var coreErr *CoreError
	return errors.As(err, &coreErr) && coreErr.Code == ErrCodeValidation
}

// IsStoreUnavailable reports whether err came from the durable backing store.
func IsStoreUnavailable(err error) bool {
	var coreErr *CoreError
	return errors.As(err, &coreErr) && coreErr.Code == ErrCodeStoreUnavailable
}
