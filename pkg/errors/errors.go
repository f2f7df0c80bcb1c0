// Package errors provides the domain error types shared by the picker, the
// stores, form validation, and the HTTP and CLI surfaces.
//
// Sentinel errors are wrapped with %w at every layer so callers can branch
// with errors.Is:
//
//	import bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
//
//	label, err := users.ResolveLabel(ctx, key)
//	if bferrors.IsNotFound(err) {
//	    // reference no longer valid, render a placeholder
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the referenced entity does not exist (or was soft-deleted).
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a submission failed a field, cross-field, or existence rule.
	ErrValidation = errors.New("validation error")

	// ErrStoreUnavailable indicates the query engine could not serve the request.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidRequest indicates malformed input at a boundary (unknown entity type, non-numeric key).
	ErrInvalidRequest = errors.New("invalid request")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStoreUnavailable reports whether any error in err's chain is ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsInvalidRequest reports whether any error in err's chain is ErrInvalidRequest.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
