package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Select builds a SELECT statement over rows decoded into S via sqlx struct
// scanning (S's fields carry `db:"..."` tags).
type Select[S any] struct {
	table   string
	cols    []string
	where   *WhereCond
	orderBy string
	limit   int
}

// From starts a Select for the given table.
func From[S any](table string) Select[S] {
	return Select[S]{table: table}
}

// Columns restricts the selected columns; default is "*".
func (s Select[S]) Columns(cols ...string) Select[S] {
	s.cols = append(s.cols, cols...)
	return s
}

// Where attaches a filter. Omitting Where selects every row in the table.
func (s Select[S]) Where(c WhereCond) Select[S] {
	s.where = &c
	return s
}

// OrderBy attaches a raw "column [ASC|DESC]" clause.
func (s Select[S]) OrderBy(clause string) Select[S] {
	s.orderBy = clause
	return s
}

// Limit caps the number of returned rows. 0 means unbounded.
func (s Select[S]) Limit(n int) Select[S] {
	s.limit = n
	return s
}

func (s Select[S]) build() (string, []any, error) {
	if !SafeIdent(s.table) {
		return "", nil, fmt.Errorf("query: unsafe table name %q", s.table)
	}

	cols := "*"
	if len(s.cols) > 0 {
		cols = strings.Join(s.cols, ", ")
	}

	sb := new(strings.Builder)
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(s.table)

	var args []any
	if s.where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.where.sql)
		args = s.where.args
	}
	if s.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(s.orderBy)
	}
	if s.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(s.limit))
	}
	return sb.String(), args, nil
}

// All executes the query against an already-rebound-capable executor and
// scans every matching row into a slice of S.
func (s Select[S]) All(ctx context.Context, db sqlx.QueryerContext) ([]S, error) {
	q, args, err := s.build()
	if err != nil {
		return nil, err
	}
	q = rebind(db, q)

	var dest []S
	if err := sqlx.SelectContext(ctx, db, &dest, q, args...); err != nil {
		return nil, fmt.Errorf("query: select %s: %w", s.table, err)
	}
	return dest, nil
}

// One executes the query and scans the first matching row into S.
func (s Select[S]) One(ctx context.Context, db sqlx.QueryerContext) (S, error) {
	q, args, err := s.build()
	if err != nil {
		var zero S
		return zero, err
	}
	q = rebind(db, q)

	var dest S
	if err := sqlx.GetContext(ctx, db, &dest, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return dest, err
		}
		return dest, fmt.Errorf("query: get %s: %w", s.table, err)
	}
	return dest, nil
}

// rebind adapts "?" placeholders to the bind style of whichever executor was
// passed in, when it exposes a Rebind method (both *sqlx.DB and *sqlx.Tx do).
func rebind(q sqlx.QueryerContext, query string) string {
	type rebinder interface{ Rebind(string) string }
	if r, ok := q.(rebinder); ok {
		return r.Rebind(query)
	}
	return query
}
