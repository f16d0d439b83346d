package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message so that wrapped sentinels
// still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeExtractionEmpty   = "EXTRACTION_EMPTY"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeLengthMismatch    = "LENGTH_MISMATCH"
	ErrCodeUpstreamFailure   = "UPSTREAM_FAILURE"
	ErrCodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	ErrCodeBodyTooLarge      = "BODY_TOO_LARGE"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChunkConfig   = NewDomainError(ErrCodeValidation, "invalid chunk configuration")
	ErrInvalidSource        = NewDomainError(ErrCodeValidation, "invalid source")
	ErrInvalidCredentials   = NewDomainError(ErrCodeValidation, "username and password are required")
	ErrBodyTooLarge         = NewDomainError(ErrCodeBodyTooLarge, "request body too large")
)

// Not found errors
var (
	ErrUserNotFound    = NewDomainError(ErrCodeNotFound, "user not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
	ErrRowNotFound     = NewDomainError(ErrCodeNotFound, "store row not found")
)

// Already exists errors
var (
	ErrUserAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "user already exists")
)

// Authorization errors
var (
	ErrInvalidLogin   = NewDomainError(ErrCodeUnauthorized, "invalid credentials")
	ErrSessionExpired = NewDomainError(ErrCodeUnauthorized, "session has expired")
	ErrInvalidSession = NewDomainError(ErrCodeUnauthorized, "invalid session")
)

// Pipeline errors
var (
	ErrExtractionEmpty = NewDomainError(ErrCodeExtractionEmpty, "source contains no extractable text")
	ErrLengthMismatch  = NewDomainError(ErrCodeLengthMismatch, "chunk and vector counts differ")
	ErrUpstreamFailure = NewDomainError(ErrCodeUpstreamFailure, "upstream model call failed")
	ErrStoreFull       = NewDomainError(ErrCodeCapacityExceeded, "vector store is full")
)

// DimensionMismatchError reports a vector whose length differs from the
// store's fixed dimensionality. Position is the offending index in the batch,
// or -1 for a query vector.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	Position int
}

func (e *DimensionMismatchError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("[%s] embedding dimension mismatch at position %d: expected %d, got %d",
			ErrCodeDimensionMismatch, e.Position, e.Expected, e.Actual)
	}
	return fmt.Sprintf("[%s] embedding dimension mismatch: expected %d, got %d",
		ErrCodeDimensionMismatch, e.Expected, e.Actual)
}

// NewDimensionMismatch creates a DimensionMismatchError
func NewDimensionMismatch(expected, actual, position int) *DimensionMismatchError {
	return &DimensionMismatchError{Expected: expected, Actual: actual, Position: position}
}
