package dto

import (
	"net/http"

	"github.com/stockledger/backend/internal/domain/shared"
)

// Transport error codes. Domain failures keep their domain code.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	shared.CodeInvalidInput:    http.StatusBadRequest,
	shared.CodeInvalidQuantity: http.StatusBadRequest,

	shared.CodeMissingTenantContext: http.StatusUnauthorized,
	shared.CodeTenantMismatch:       http.StatusForbidden,

	shared.CodeNotFound:    http.StatusNotFound,
	shared.CodeSkuNotFound: http.StatusNotFound,

	shared.CodeAlreadyExists:       http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,
	shared.CodeIdempotencyConflict: http.StatusConflict,

	shared.CodeNegativeStock: http.StatusUnprocessableEntity,
	shared.CodeOverReceipt:   http.StatusUnprocessableEntity,
	shared.CodeInvalidState:  http.StatusUnprocessableEntity,
	shared.CodeItemRetired:   http.StatusUnprocessableEntity,

	shared.CodeLockTimeout: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RetryAfterSeconds is sent with LOCK_TIMEOUT responses
const RetryAfterSeconds = "1"
