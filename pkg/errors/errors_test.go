package errors

import (
	"errors"
	"fmt"
	"testing"
)

// Each sentinel must be recognized by exactly one predicate, however deeply
// it is wrapped.
func TestPredicates(t *testing.T) {
	predicates := map[string]func(error) bool{
		"IsNotFound":         IsNotFound,
		"IsValidation":       IsValidation,
		"IsStoreUnavailable": IsStoreUnavailable,
		"IsInvalidRequest":   IsInvalidRequest,
	}
	cause := errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", ErrNotFound, "IsNotFound"},
		{"stale key", fmt.Errorf("resolve users/999: %w", ErrNotFound), "IsNotFound"},
		{"nested wrap", fmt.Errorf("picker: %w", fmt.Errorf("store: %w", ErrNotFound)), "IsNotFound"},
		{"validation", fmt.Errorf("private message: %w", ErrValidation), "IsValidation"},
		{"store with cause", fmt.Errorf("searching users: %w: %w", ErrStoreUnavailable, cause), "IsStoreUnavailable"},
		{"joined", errors.Join(cause, ErrStoreUnavailable), "IsStoreUnavailable"},
		{"bad entity type", fmt.Errorf("entity type %q: %w", "widgets", ErrInvalidRequest), "IsInvalidRequest"},
		{"bare cause", cause, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, is := range predicates {
				if got, want := is(tt.err), name == tt.want; got != want {
					t.Errorf("%s(%v) = %v, want %v", name, tt.err, got, want)
				}
			}
		})
	}
}
