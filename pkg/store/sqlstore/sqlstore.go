// Package sqlstore builds the read-only SQL issued by the relational
// picker.QueryEngine implementations. It knows the table layout; the
// dialect supplies placeholders and the case-insensitive match operator.
package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

// Dialect captures the SQL differences between engines.
type Dialect struct {
	// Name identifies the dialect in errors.
	Name string
	// Placeholder renders the n-th bind parameter, starting at 1.
	Placeholder func(n int) string
	// Numbered dialects can reference one bind parameter several times.
	Numbered bool
	// Match renders a case-insensitive LIKE of expr against a bound pattern.
	Match func(expr, param string) string
}

// Postgres uses $n placeholders and ILIKE.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Numbered:    true,
	Match:       func(expr, param string) string { return expr + " ILIKE " + param },
}

// SQLite uses ? placeholders. LIKE is case-insensitive for ASCII only, so
// both sides are lowered.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	Match:       func(expr, param string) string { return "LOWER(" + expr + ") LIKE LOWER(" + param + ")" },
}

// Table describes how an entity type maps onto SQL.
type Table struct {
	Entity picker.EntityType
	// Name is the physical table, aliased as Alias.
	Name  string
	Alias string
	// Joins are appended to the FROM clause.
	Joins string
	// Columns maps logical field names to SQL expressions producing text.
	Columns map[string]string
}

// Tables lists the entity tables.
var Tables = map[picker.EntityType]Table{
	picker.EntityUser: {
		Entity: picker.EntityUser,
		Name:   "users",
		Alias:  "u",
		Columns: map[string]string{
			"id":    "CAST(u.id AS TEXT)",
			"name":  "u.name",
			"email": "u.email",
		},
	},
	picker.EntityPost: {
		Entity: picker.EntityPost,
		Name:   "posts",
		Alias:  "p",
		Joins:  "LEFT JOIN users o ON o.id = p.user_id",
		Columns: map[string]string{
			"id":          "CAST(p.id AS TEXT)",
			"title":       "p.title",
			"description": "p.description",
			"user_id":     "CAST(p.user_id AS TEXT)",
			"owner_name":  "COALESCE(o.name, '')",
		},
	},
}

// Statement is a query and its bind arguments.
type Statement struct {
	SQL  string
	Args []any
	// Fields are the logical names of the selected columns after the key.
	Fields []string
}

// LookupTable returns the table for entity.
func LookupTable(entity picker.EntityType) (Table, error) {
	t, ok := Tables[entity]
	if !ok {
		return Table{}, fmt.Errorf("%w: unknown entity type %q", bferrors.ErrInvalidRequest, entity)
	}
	return t, nil
}

func (t Table) column(field string) (string, error) {
	expr, ok := t.Columns[field]
	if !ok {
		return "", fmt.Errorf("%w: %s has no column %q", bferrors.ErrInvalidRequest, t.Name, field)
	}
	return expr, nil
}

func (t Table) selectList(fields []string) (string, error) {
	cols := []string{t.Alias + ".id"}
	for _, f := range fields {
		expr, err := t.column(f)
		if err != nil {
			return "", err
		}
		cols = append(cols, expr)
	}
	return strings.Join(cols, ", "), nil
}

func (t Table) from() string {
	from := t.Name + " " + t.Alias
	if t.Joins != "" {
		from += " " + t.Joins
	}
	return from
}

// Find builds the filtered, limited search over live rows in key order.
func Find(d Dialect, q picker.Query) (Statement, error) {
	t, err := LookupTable(q.Entity)
	if err != nil {
		return Statement{}, err
	}
	sel, err := t.selectList(q.Fields)
	if err != nil {
		return Statement{}, err
	}

	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s.deleted_at IS NULL", sel, t.from(), t.Alias)

	if q.Pattern != "" && len(q.Attributes) > 0 {
		var ors []string
		for i, attr := range q.Attributes {
			expr, err := t.column(attr)
			if err != nil {
				return Statement{}, err
			}
			if i == 0 || !d.Numbered {
				args = append(args, q.Pattern)
			}
			ors = append(ors, d.Match(expr, d.Placeholder(len(args))))
		}
		fmt.Fprintf(&b, " AND (%s)", strings.Join(ors, " OR "))
	}

	fmt.Fprintf(&b, " ORDER BY %s.id", t.Alias)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT %s", d.Placeholder(len(args)))
	}

	return Statement{SQL: b.String(), Args: args, Fields: q.Fields}, nil
}

// Get builds the lookup of one live row by key.
func Get(d Dialect, entity picker.EntityType, key int64, fields []string) (Statement, error) {
	t, err := LookupTable(entity)
	if err != nil {
		return Statement{}, err
	}
	sel, err := t.selectList(fields)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s.id = %s AND %s.deleted_at IS NULL",
		sel, t.from(), t.Alias, d.Placeholder(1), t.Alias)
	return Statement{SQL: sql, Args: []any{key}, Fields: fields}, nil
}

// Exists builds a raw row check that ignores soft deletion.
func Exists(d Dialect, entity picker.EntityType, key int64) (Statement, error) {
	t, err := LookupTable(entity)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = %s)", t.Name, d.Placeholder(1))
	return Statement{SQL: sql, Args: []any{key}}, nil
}

// Record assembles a picker.Record from scanned values: the key followed by
// one string per field.
func (s Statement) Record(key int64, values []string) picker.Record {
	rec := picker.Record{Key: key, Fields: make(map[string]string, len(s.Fields))}
	for i, f := range s.Fields {
		if i < len(values) {
			rec.Fields[f] = values[i]
		}
	}
	return rec
}

// ScanTargets returns destinations for a row: the key followed by one string
// per field.
func (s Statement) ScanTargets(key *int64, values []string) []any {
	dest := make([]any, 0, len(values)+1)
	dest = append(dest, key)
	for i := range values {
		dest = append(dest, &values[i])
	}
	return dest
}
