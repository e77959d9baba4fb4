package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// SQLRows implements Rows on Postgres through database/sql.
type SQLRows struct {
	db *sql.DB
}

// NewSQLRows wraps an open database handle.
func NewSQLRows(db *sql.DB) *SQLRows {
	return &SQLRows{db: db}
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// where renders "a = $n AND b >= $n+1" starting after len(args) existing args.
func where(filter Filter, args []any) (string, []any) {
	if len(filter) == 0 {
		return "", args
	}
	clauses := make([]string, 0, len(filter))
	for _, col := range sortedKeys(filter) {
		op := " = $"
		v := filter[col]
		if lo, ok := v.(AtLeast); ok {
			op, v = " >= $", lo.V
		}
		args = append(args, v)
		clauses = append(clauses, ident(col)+op+strconv.Itoa(len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// FindOne returns the first row matching filter.
func (s *SQLRows) FindOne(ctx context.Context, table string, filter Filter) (Row, error) {
	clause, args := where(filter, nil)
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+ident(table)+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	res, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	if len(res) == 0 {
		return nil, ErrNotFound
	}
	return res[0], nil
}

// FindMany lists rows matching filter. orderBy names a column, prefixed with "-" for descending.
func (s *SQLRows) FindMany(ctx context.Context, table string, filter Filter, orderBy string, limit int) ([]Row, error) {
	clause, args := where(filter, nil)
	query := "SELECT * FROM " + ident(table) + clause
	if orderBy != "" {
		dir := " ASC"
		if strings.HasPrefix(orderBy, "-") {
			orderBy, dir = orderBy[1:], " DESC"
		}
		query += " ORDER BY " + ident(orderBy) + dir
	}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	res, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return res, nil
}

// Insert writes row and returns it as stored.
func (s *SQLRows) Insert(ctx context.Context, table string, row Row) (Row, error) {
	cols := sortedKeys(row)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		names[i] = ident(col)
		marks[i] = "$" + strconv.Itoa(i+1)
		args[i] = row[col]
	}
	query := "INSERT INTO " + ident(table) + " (" + strings.Join(names, ", ") + ") VALUES (" +
		strings.Join(marks, ", ") + ") RETURNING *"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(table, err)
	}
	res, err := scanRows(rows)
	if err != nil {
		return nil, translate(table, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("insert %s: no row returned", table)
	}
	return res[0], nil
}

// Update applies patch to the first row matching filter.
func (s *SQLRows) Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error) {
	if len(patch) == 0 {
		return s.FindOne(ctx, table, filter)
	}
	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+len(filter))
	for _, col := range sortedKeys(patch) {
		args = append(args, patch[col])
		sets = append(sets, ident(col)+" = $"+strconv.Itoa(len(args)))
	}
	clause, args := where(filter, args)
	query := "UPDATE " + ident(table) + " SET " + strings.Join(sets, ", ") + clause + " RETURNING *"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(table, err)
	}
	res, err := scanRows(rows)
	if err != nil {
		return nil, translate(table, err)
	}
	if len(res) == 0 {
		return nil, ErrNotFound
	}
	return res[0], nil
}

func translate(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", table, ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("write %s: %w", table, err)
}

// scanRows reads every column into a Row. pgx.CollectRows needs pgx.Rows,
// which the database/sql pool does not expose.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
