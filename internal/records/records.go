// Package records is the generic data-access layer: fetch-all, add, update and delete
// over the whitelisted tables of the catalog. It is a pass-through with no retries;
// every successful mutation is announced on the realtime broker.
package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Row is one table row keyed by column name. Content columns hold strings;
// "id" is a string and "created_at"/"updated_at" are time.Time.
type Row map[string]any

// Text returns the column value as a string, or "" when absent.
func (r Row) Text(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case nil:
		return ""
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// ID returns the row id.
func (r Row) ID() string { return r.Text("id") }

// Filter holds equality predicates (column -> value).
type Filter map[string]string

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalid       = errors.New("invalid record")
)

// Error normalizes every failure with the operation and table it came from.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string { return e.Op + " " + e.Table + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// FieldError is one column failing its rule.
type FieldError struct {
	Column string `json:"column"`
	Rule   string `json:"rule"`
}

// ValidationError lists every failing column.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Rule == "required" {
			msgs[i] = fmt.Sprintf("field %s is required", f.Column)
		} else {
			msgs[i] = fmt.Sprintf("field %s is invalid (%s)", f.Column, f.Rule)
		}
	}
	return strings.Join(msgs, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

var validate = validator.New()

// Normalize checks row against table: unknown columns are rejected, values are
// stringified, and every column rule is applied. On insert (partial=false) columns
// missing from row are validated as empty so "required" rules fire; on update only
// the columns present are checked.
func Normalize(t Table, row Row, partial bool) (Row, error) {
	out := make(Row, len(row))
	for name, v := range row {
		if name == "id" || name == "created_at" || name == "updated_at" {
			continue
		}
		if _, ok := t.Column(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		switch val := v.(type) {
		case string:
			out[name] = strings.TrimSpace(val)
		case nil:
			out[name] = ""
		default:
			out[name] = fmt.Sprint(val)
		}
	}

	var fails []FieldError
	for _, c := range t.Columns {
		v, present := out[c.Name]
		if !present {
			if partial {
				continue
			}
			v = ""
			out[c.Name] = ""
		}
		if c.Rule == "" {
			continue
		}
		if err := validate.Var(v, c.Rule); err != nil {
			var verrs validator.ValidationErrors
			tag := c.Rule
			if errors.As(err, &verrs) && len(verrs) > 0 {
				tag = verrs[0].Tag()
			}
			fails = append(fails, FieldError{Column: c.Name, Rule: tag})
		}
	}
	if len(fails) > 0 {
		sort.Slice(fails, func(i, j int) bool { return fails[i].Column < fails[j].Column })
		return nil, &ValidationError{Fields: fails}
	}
	return out, nil
}

// CheckFilter rejects predicates the table does not allow.
func CheckFilter(t Table, f Filter) error {
	for col := range f {
		if !t.CanFilter(col) {
			return fmt.Errorf("%w: cannot filter %s by %s", ErrUnknownColumn, t.Name, col)
		}
	}
	return nil
}

// Lookup returns the catalog entry for a table name.
func Lookup(name string) (Table, error) {
	t, ok := Catalog[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}
