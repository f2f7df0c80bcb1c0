// Package picker implements the entity reference picker: a search over a
// related table that yields (key, label) options for an autocomplete field,
// and the lookup that renders the label for a key that was already chosen.
package picker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
)

// MaxOptions is the hard cap on the number of options a search returns.
const MaxOptions = 50

// EntityType names a referenceable table.
type EntityType string

const (
	EntityUser EntityType = "users"
	EntityPost EntityType = "posts"
)

// String returns the table name.
func (t EntityType) String() string {
	return string(t)
}

// Record is one row returned by a QueryEngine. Fields holds the requested
// columns rendered as text; the key is always present as Key.
type Record struct {
	Key    int64
	Fields map[string]string
}

// Field returns the named column, or the key when name is "id".
func (r Record) Field(name string) string {
	if name == "id" {
		return strconv.FormatInt(r.Key, 10)
	}
	return r.Fields[name]
}

// Query is a read-only filtered lookup.
//
// Rows match when any attribute in Attributes contains Pattern,
// case-insensitively. An empty Pattern matches every row. Pattern is used
// verbatim: SQL wildcards inside it keep their meaning.
type Query struct {
	Entity     EntityType
	Attributes []string
	Pattern    string
	Fields     []string
	Limit      int
}

// ContainsPattern returns the LIKE pattern for a substring search.
func ContainsPattern(q string) string {
	return "%" + q + "%"
}

// QueryEngine is the storage boundary used by the picker. Implementations
// only read; they never modify rows.
type QueryEngine interface {
	// Find returns the rows matching q in store order, at most q.Limit rows.
	Find(ctx context.Context, q Query) ([]Record, error)

	// Get returns a single live row by key. It returns an error wrapping
	// errors.ErrNotFound when no such row exists.
	Get(ctx context.Context, entity EntityType, key int64, fields []string) (*Record, error)

	// Exists reports whether a row with the key exists in the table.
	Exists(ctx context.Context, entity EntityType, key int64) (bool, error)
}

// Option is one choice offered to the user.
type Option struct {
	Key   int64  `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

// OptionSet is an ordered list of options with unique keys.
type OptionSet []Option

// Keys returns the option keys in order.
func (s OptionSet) Keys() []int64 {
	keys := make([]int64, len(s))
	for i, o := range s {
		keys[i] = o.Key
	}
	return keys
}

// Label returns the label for key and whether it is present.
func (s OptionSet) Label(key int64) (string, bool) {
	for _, o := range s {
		if o.Key == key {
			return o.Label, true
		}
	}
	return "", false
}

// Map returns the options keyed by entity key.
func (s OptionSet) Map() map[int64]string {
	m := make(map[int64]string, len(s))
	for _, o := range s {
		m[o.Key] = o.Label
	}
	return m
}

// ParseEntityType accepts a table name or its singular form.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "users", "user":
		return EntityUser, nil
	case "posts", "post":
		return EntityPost, nil
	default:
		return "", fmt.Errorf("%w: unknown entity type %q", bferrors.ErrInvalidRequest, s)
	}
}

// ParseKey parses an entity key.
func ParseKey(s string) (int64, error) {
	key, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid key %q", bferrors.ErrInvalidRequest, s)
	}
	return key, nil
}
