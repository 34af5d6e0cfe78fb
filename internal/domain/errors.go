package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can use errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrMissingField         = errors.New("required field missing")
	ErrMalformedInput       = errors.New("malformed input")
	ErrTooManyComorbidities = errors.New("comorbidity count exceeds slot capacity")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrReferenceData        = errors.New("invalid reference data")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeMissingField  = "MISSING_FIELD"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeOverflow      = "COMORBIDITY_OVERFLOW"
	ErrCodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal      = "INTERNAL_SERVER_ERROR"
	ErrCodeReferenceData = "REFERENCE_DATA_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// MissingFieldError reports a required top-level record field that is absent.
// An empty value is not missing; only an absent key (or null) is.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field '%s' is missing", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// ValidationError represents a record field holding a value of the wrong shape.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrMalformedInput }

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// OverflowError is returned by strict fixed-width encoding when more comorbidities were
// resolved than slots are available.
type OverflowError struct {
	Capacity int
	Dropped  []Label
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%d comorbidities exceed %d slots", e.Capacity+len(e.Dropped), e.Capacity)
}

func (e *OverflowError) Unwrap() error { return ErrTooManyComorbidities }

// ReferenceDataError reports a structural problem in one of the reference tables.
type ReferenceDataError struct {
	Source string
	Line   int
	Reason string
}

func (e *ReferenceDataError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *ReferenceDataError) Unwrap() error { return ErrReferenceData }
