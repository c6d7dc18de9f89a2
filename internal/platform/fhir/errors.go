package fhir

import (
	"errors"
	"fmt"
)

// InvalidSearchParameterError reports a search parameter that cannot be
// honored as written: an unsupported modifier, an unknown parameter name,
// or a malformed value. It maps to an HTTP 400 invalid-request outcome.
type InvalidSearchParameterError struct {
	Message string
}

func (e *InvalidSearchParameterError) Error() string {
	return e.Message
}

// NewInvalidSearchParameterError creates an InvalidSearchParameterError with
// a formatted message.
func NewInvalidSearchParameterError(format string, args ...interface{}) *InvalidSearchParameterError {
	return &InvalidSearchParameterError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidSearchParameter reports whether err is (or wraps) an
// InvalidSearchParameterError.
func IsInvalidSearchParameter(err error) bool {
	var target *InvalidSearchParameterError
	return errors.As(err, &target)
}
