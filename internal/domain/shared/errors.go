package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so errors.Is works
// against the sentinels below even when the message was specialised.
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

// NewDomainErrorf creates a domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// Error codes
const (
	CodeNotFound             = "NOT_FOUND"
	CodeAlreadyExists        = "ALREADY_EXISTS"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	CodeInvalidState         = "INVALID_STATE"
	CodeSkuNotFound          = "SKU_NOT_FOUND"
	CodeNegativeStock        = "NEGATIVE_STOCK"
	CodeOverReceipt          = "OVER_RECEIPT"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeTenantMismatch       = "TENANT_MISMATCH"
	CodeLockTimeout          = "LOCK_TIMEOUT"
	CodeMissingTenantContext = "MISSING_TENANT_CONTEXT"
	CodeItemRetired          = "ITEM_RETIRED"
	CodeIdempotencyConflict  = "IDEMPOTENCY_CONFLICT"
)

// Common domain errors
var (
	ErrNotFound             = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists        = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput         = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict  = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState         = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrSkuNotFound          = NewDomainError(CodeSkuNotFound, "SKU not found")
	ErrNegativeStock        = NewDomainError(CodeNegativeStock, "Insufficient stock: quantity on hand cannot go below zero")
	ErrOverReceipt          = NewDomainError(CodeOverReceipt, "Received quantity exceeds remaining ordered quantity")
	ErrInvalidQuantity      = NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	ErrTenantMismatch       = NewDomainError(CodeTenantMismatch, "Referenced entity belongs to another tenant")
	ErrLockTimeout          = NewDomainError(CodeLockTimeout, "Timed out waiting for a row lock, retry later")
	ErrMissingTenantContext = NewDomainError(CodeMissingTenantContext, "Tenant context is required")
	ErrItemRetired          = NewDomainError(CodeItemRetired, "Stock item has been retired")
	ErrIdempotencyConflict  = NewDomainError(CodeIdempotencyConflict, "Idempotency key was already used for a different operation")
)

// IsRetryable reports whether the caller may safely resubmit the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
