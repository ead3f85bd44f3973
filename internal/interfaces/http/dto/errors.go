package dto

import (
	"net/http"
	"strings"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDraftNotFound       = "ERR_DRAFT_NOT_FOUND"
	ErrCodeSessionNotFound     = "ERR_SESSION_NOT_FOUND"
	ErrCodeLineNotFound        = "ERR_LINE_NOT_FOUND"
	ErrCodeLevelNotFound       = "ERR_LEVEL_NOT_FOUND"
)

// Document error codes
const (
	ErrCodeInvalidState          = "ERR_INVALID_STATE"
	ErrCodeReconciliationBlocked = "ERR_RECONCILIATION_BLOCKED"
	ErrCodeDocumentPosted        = "ERR_DOCUMENT_POSTED"
	ErrCodeInvalidDocumentNumber = "ERR_INVALID_DOCUMENT_NUMBER"
	ErrCodeInvalidAmount         = "ERR_INVALID_AMOUNT"
)

// Selection error codes
const (
	ErrCodeSelectionNotVisible  = "ERR_SELECTION_NOT_VISIBLE"
	ErrCodeInvalidCatalogPolicy = "ERR_INVALID_CATALOG_POLICY"
	ErrCodeStaleFetch           = "ERR_STALE_FETCH"
	ErrCodeSessionClosed        = "ERR_SESSION_CLOSED"
	ErrCodeHydrating            = "ERR_HYDRATING"
	ErrCodeHydrationIncomplete  = "ERR_HYDRATION_INCOMPLETE"
	ErrCodeNotHydrating         = "ERR_NOT_HYDRATING"
)

// Sequence error codes
const (
	ErrCodeAllocatorConflict     = "ERR_ALLOCATOR_CONFLICT"
	ErrCodeInvalidAllocatorState = "ERR_INVALID_ALLOCATOR_STATE"
	ErrCodeInvalidScope          = "ERR_INVALID_SCOPE"
	ErrCodeInvalidCounter        = "ERR_INVALID_COUNTER"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTenantID     = "ERR_TENANT_REQUIRED"
	ErrCodeBodyTooLarge = "ERR_BODY_TOO_LARGE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDraftNotFound:       http.StatusNotFound,
	ErrCodeSessionNotFound:     http.StatusNotFound,
	ErrCodeLineNotFound:        http.StatusNotFound,
	ErrCodeLevelNotFound:       http.StatusNotFound,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:          http.StatusUnprocessableEntity,
	ErrCodeReconciliationBlocked: http.StatusUnprocessableEntity,
	ErrCodeDocumentPosted:        http.StatusUnprocessableEntity,
	ErrCodeInvalidDocumentNumber: http.StatusBadRequest,
	ErrCodeInvalidAmount:         http.StatusBadRequest,
	ErrCodeSelectionNotVisible:   http.StatusUnprocessableEntity,
	ErrCodeInvalidCatalogPolicy:  http.StatusBadRequest,
	ErrCodeInvalidAllocatorState: http.StatusUnprocessableEntity,
	ErrCodeInvalidCounter:        http.StatusUnprocessableEntity,
	ErrCodeInvalidScope:          http.StatusBadRequest,

	// Ordering errors of a live session -> 409 Conflict
	ErrCodeStaleFetch:          http.StatusConflict,
	ErrCodeSessionClosed:       http.StatusConflict,
	ErrCodeHydrating:           http.StatusConflict,
	ErrCodeHydrationIncomplete: http.StatusConflict,
	ErrCodeNotHydrating:        http.StatusConflict,
	ErrCodeAllocatorConflict:   http.StatusConflict,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTenantID:     http.StatusBadRequest,
	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain codes whose API code differs from the ERR_ prefixed form
var LegacyErrorCodeMapping = map[string]string{
	"VALIDATION_ERROR": ErrCodeValidation,
	"INTERNAL_ERROR":   ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the ERR_ format are returned unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	if code == "" {
		return ErrCodeUnknown
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
