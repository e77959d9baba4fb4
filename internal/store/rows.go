package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned when no row matches a filter.
	ErrNotFound = errors.New("store: row not found")
	// ErrConflict is returned when an insert violates a unique constraint.
	ErrConflict = errors.New("store: unique constraint violated")
)

// Row is a single record keyed by column name.
type Row map[string]any

// Filter selects rows by column equality, or by a lower bound when the value is AtLeast.
type Filter map[string]any

// AtLeast matches column values greater than or equal to V.
type AtLeast struct {
	V any
}

// Rows is the row-oriented data access boundary shared by all tables.
type Rows interface {
	FindOne(ctx context.Context, table string, filter Filter) (Row, error)
	FindMany(ctx context.Context, table string, filter Filter, orderBy string, limit int) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error)
}

// String returns the column as a string, or "" if absent or not a string.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Time returns the column as a UTC time, or the zero time.
func (r Row) Time(col string) time.Time {
	if v, ok := r[col].(time.Time); ok {
		return v.UTC()
	}
	return time.Time{}
}

// Bool returns the column as a bool, or false.
func (r Row) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

// Clone returns a shallow copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// sortedKeys gives deterministic column order for generated SQL.
func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
