package errors

import (
	"context"
	"errors"
	"net/http"
)

// ErrorCode is the stable, machine-readable classification of a domain error.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeInvalidRequest   ErrorCode = "invalid_request"
	CodeInternal         ErrorCode = "internal"
)

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	HTTPStatus      int
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeNotFound: {
		Code:            CodeNotFound,
		Retryable:       false,
		HTTPStatus:      http.StatusNotFound,
		Description:     "Referenced entity no longer exists",
		SuggestedAction: "Clear the field and pick the entity again",
	},
	CodeValidationFailed: {
		Code:            CodeValidationFailed,
		Retryable:       false,
		HTTPStatus:      http.StatusUnprocessableEntity,
		Description:     "Submission failed validation",
		SuggestedAction: "Fix the reported fields and submit again",
	},
	CodeStoreUnavailable: {
		Code:            CodeStoreUnavailable,
		Retryable:       true,
		HTTPStatus:      http.StatusServiceUnavailable,
		Description:     "Query engine could not be reached",
		SuggestedAction: "Check database health: backoffice db status",
	},
	CodeInvalidRequest: {
		Code:            CodeInvalidRequest,
		Retryable:       false,
		HTTPStatus:      http.StatusBadRequest,
		Description:     "Malformed request (unknown entity type or non-numeric key)",
		SuggestedAction: "Use one of the supported entity types: users, posts",
	},
	CodeInternal: {
		Code:            CodeInternal,
		Retryable:       false,
		HTTPStatus:      http.StatusInternalServerError,
		Description:     "Unclassified error",
		SuggestedAction: "Check the service logs for details",
	},
}

// Classify maps err onto its ErrorCode by walking the error chain.
// A nil error has no code and returns the empty string.
func Classify(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// HTTPStatus returns the HTTP status used when surfacing code to an HTTP client.
func HTTPStatus(code ErrorCode) int {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.HTTPStatus
	}
	return http.StatusInternalServerError
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check the service logs for details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
