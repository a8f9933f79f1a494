package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrAlreadyHandled     = errors.New("suggestion already handled")
	ErrAlreadyApplied     = errors.New("suggestion already applied")
	ErrSurfaceMismatch    = errors.New("surface mismatch")
	ErrInvalidStatus      = errors.New("invalid suggestion status")
	ErrSelectionRequired  = errors.New("no suggestion selected")
	ErrApplyConflict      = errors.New("suggestion apply conflict")
	ErrWrongRecordType    = errors.New("operation not supported for this suggestion type")
	ErrInvalidRequest     = errors.New("invalid request")
)

// ValidationError reports the first contract violation found in an
// untrusted envelope. Field is a dotted path such as
// "suggestions[2].payload.priority".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid suggestion envelope: " + e.Message
	}
	return fmt.Sprintf("invalid suggestion envelope: %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a contract violation
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// QuotaExceededError is returned when the daily generation quota is used up
type QuotaExceededError struct {
	Usage Usage
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily AI suggestion quota exhausted (%d/%d on %s plan)", e.Usage.Used, e.Usage.Limit, e.Usage.Plan)
}
