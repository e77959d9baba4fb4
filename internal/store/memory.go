package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Rows implementation for development and tests.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row
	unique map[string][][]string
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]Row),
		unique: make(map[string][][]string),
	}
}

// Unique declares a unique index on table over cols.
func (m *Memory) Unique(table string, cols ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[table] = append(m.unique[table], cols)
	return m
}

// Count returns how many rows table holds.
func (m *Memory) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *Memory) FindOne(_ context.Context, table string, filter Filter) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			return row.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// FindMany lists rows matching filter. orderBy names a column, prefixed with "-" for descending.
func (m *Memory) FindMany(_ context.Context, table string, filter Filter, orderBy string, limit int) ([]Row, error) {
	m.mu.Lock()
	var out []Row
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			out = append(out, row.Clone())
		}
	}
	m.mu.Unlock()

	if orderBy != "" {
		desc := strings.HasPrefix(orderBy, "-")
		col := strings.TrimPrefix(orderBy, "-")
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return less(out[j][col], out[i][col])
			}
			return less(out[i][col], out[j][col])
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cols := range m.unique[table] {
		key := Filter{}
		for _, c := range cols {
			key[c] = row[c]
		}
		for _, existing := range m.tables[table] {
			if matches(existing, key) {
				return nil, fmt.Errorf("%s: %w (%s)", table, ErrConflict, strings.Join(cols, ","))
			}
		}
	}
	stored := row.Clone()
	m.tables[table] = append(m.tables[table], stored)
	return stored.Clone(), nil
}

func (m *Memory) Update(_ context.Context, table string, filter Filter, patch Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			for k, v := range patch {
				row[k] = v
			}
			return row.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func matches(row Row, filter Filter) bool {
	for col, want := range filter {
		if lo, ok := want.(AtLeast); ok {
			if row[col] == nil || less(row[col], lo.V) {
				return false
			}
			continue
		}
		if !equal(row[col], want) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func less(a, b any) bool {
	switch va := a.(type) {
	case time.Time:
		vb, _ := b.(time.Time)
		return va.Before(vb)
	case string:
		vb, _ := b.(string)
		return va < vb
	case int:
		vb, _ := b.(int)
		return va < vb
	case int64:
		vb, _ := b.(int64)
		return va < vb
	}
	return false
}
