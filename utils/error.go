package utils

import "errors"

// Sentinel errors for the business-rule taxonomy. Models functions wrap these
// with fmt.Errorf("%w: ...") when a specific message is needed; handlers map
// them to HTTP statuses with errors.Is.
var (
	ErrorRecordNotFound    = errors.New("record not found")
	ErrorConflict          = errors.New("conflict")
	ErrorInsufficientStock = errors.New("insufficient stock")
	ErrorInvalidState      = errors.New("invalid state")
	ErrorForbidden         = errors.New("forbidden")
)
