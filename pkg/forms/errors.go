package forms

import (
	"sort"
	"strings"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
)

// ValidationError lists the rejected fields of a form, keyed by JSON field
// name. It matches errors.ErrValidation.
type ValidationError struct {
	Form   string            `json:"form"`
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + e.Fields[name]
	}
	return e.Form + ": " + bferrors.ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap returns errors.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return bferrors.ErrValidation
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

func (e *ValidationError) add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}
