package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped sentinels compare correctly with errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorf creates a new domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrValidation          = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrCertificate         = NewDomainError("CERTIFICATE_ERROR", "Signing certificate is missing or invalid")
	ErrSchema              = NewDomainError("SCHEMA_ERROR", "Document is missing required data")
	ErrBusinessRejection   = NewDomainError("BUSINESS_REJECTION", "Document rejected by the tax authority")
	ErrTransport           = NewDomainError("TRANSPORT_ERROR", "Tax authority is unreachable")
)

// NewValidationError creates a VALIDATION_ERROR with a specific message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainErrorf(ErrValidation.Code, format, args...)
}

// NewInsufficientStockError creates an INSUFFICIENT_STOCK error with a specific message
func NewInsufficientStockError(format string, args ...any) *DomainError {
	return NewDomainErrorf(ErrInsufficientStock.Code, format, args...)
}

// NewCertificateError creates a CERTIFICATE_ERROR with a specific message
func NewCertificateError(format string, args ...any) *DomainError {
	return NewDomainErrorf(ErrCertificate.Code, format, args...)
}

// NewSchemaError creates a SCHEMA_ERROR with a specific message
func NewSchemaError(format string, args ...any) *DomainError {
	return NewDomainErrorf(ErrSchema.Code, format, args...)
}

// NewBusinessRejection creates a BUSINESS_REJECTION carrying the authority's reason
func NewBusinessRejection(format string, args ...any) *DomainError {
	return NewDomainErrorf(ErrBusinessRejection.Code, format, args...)
}

// NewTransportError creates a retryable TRANSPORT_ERROR for authority I/O failures
func NewTransportError(format string, args ...any) *DomainError {
	return NewDomainErrorf(ErrTransport.Code, format, args...)
}
