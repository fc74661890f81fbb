package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrWhereRequired is returned by Update/Delete builders when Exec is called
// without a Where clause having been set. The WithoutWhere/WithWhere type
// parameter does not restrict which builders have Exec, so this run-time
// check is what rejects an UPDATE or DELETE with no WHERE clause.
var ErrWhereRequired = errors.New("query: where clause is required")

// ErrSetRequired is returned when an Update is executed with no assignments.
var ErrSetRequired = errors.New("query: at least one Set() is required")

// Insert builds an INSERT INTO table (cols...) VALUES (?...) statement.
type Insert struct {
	table string
	cols  []string
	args  []any
}

// InsertInto starts an Insert for the given table.
func InsertInto(table string) Insert {
	return Insert{table: table}
}

// Set adds a column assignment.
func (b Insert) Set(col string, v any) Insert {
	b.cols = append(b.cols, col)
	b.args = append(b.args, v)
	return b
}

func (b Insert) build() (string, []any, error) {
	if !SafeIdent(b.table) {
		return "", nil, fmt.Errorf("query: unsafe table name %q", b.table)
	}
	if len(b.cols) == 0 {
		return "", nil, ErrSetRequired
	}
	placeholders := make([]string, len(b.cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.table, strings.Join(b.cols, ", "), strings.Join(placeholders, ", "))
	return q, b.args, nil
}

// Exec runs the insert and returns the driver-assigned row id (used for
// Resource.id and Ticket.id, both declared AUTOINCREMENT PRIMARY KEY).
func (b Insert) Exec(ctx context.Context, db *sqlx.DB) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = db.Rebind(q)
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("query: insert into %s: %w", b.table, err)
	}
	return res.LastInsertId()
}

// ExecTx is Exec against an open transaction.
func (b Insert) ExecTx(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = tx.Rebind(q)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("query: insert into %s: %w", b.table, err)
	}
	return res.LastInsertId()
}

// Update builds an UPDATE table SET ... WHERE ... statement. The type
// parameter mirrors the teacher's phantom-type trick (WithoutWhere/WithWhere)
// and records whether Where has been called. Go method receivers cannot
// select one instantiation, so Exec and ExecTx exist on every Update; a
// missing WHERE clause is reported at run time as ErrWhereRequired.
type Update[W whereState] struct {
	table string
	cols  []string
	args  []any
	where *WhereCond
}

type whereState interface{ sealed() }

// WithoutWhere marks an Update/Delete builder before Where has been called.
type WithoutWhere struct{}

func (WithoutWhere) sealed() {}

// WithWhere marks an Update/Delete builder after Where has been called.
type WithWhere struct{}

func (WithWhere) sealed() {}

// UpdateTable starts an Update for the given table.
func UpdateTable(table string) Update[WithoutWhere] {
	return Update[WithoutWhere]{table: table}
}

// RawExpr marks a Set value as a literal SQL expression (e.g.
// "releases_counter + 1") rather than a bound argument.
type RawExpr string

// Set adds a column assignment. A RawExpr value is inlined as a literal SQL
// expression instead of becoming a bound "?" argument.
func (b Update[W]) Set(col string, v any) Update[W] {
	b.cols = append(b.cols, col)
	b.args = append(b.args, v)
	return b
}

// Where attaches the filter and returns the builder typed as WithWhere.
func (b Update[WithoutWhere]) Where(c WhereCond) Update[WithWhere] {
	b.where = &c
	return Update[WithWhere](b)
}

func (b Update[W]) build() (string, []any, error) {
	if !SafeIdent(b.table) {
		return "", nil, fmt.Errorf("query: unsafe table name %q", b.table)
	}
	if len(b.cols) == 0 {
		return "", nil, ErrSetRequired
	}
	if b.where == nil {
		return "", nil, ErrWhereRequired
	}
	sets := make([]string, len(b.cols))
	args := make([]any, 0, len(b.args)+len(b.where.args))
	for i, c := range b.cols {
		if raw, ok := b.args[i].(RawExpr); ok {
			sets[i] = c + " = " + string(raw)
			continue
		}
		sets[i] = c + " = ?"
		args = append(args, b.args[i])
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", b.table, strings.Join(sets, ", "), b.where.sql)
	return q, append(args, b.where.args...), nil
}

// Exec runs the update and returns the affected row count.
func (b Update[WithWhere]) Exec(ctx context.Context, db *sqlx.DB) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = db.Rebind(q)
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("query: update %s: %w", b.table, err)
	}
	return res.RowsAffected()
}

// ExecTx is Exec against an open transaction.
func (b Update[WithWhere]) ExecTx(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = tx.Rebind(q)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("query: update %s: %w", b.table, err)
	}
	return res.RowsAffected()
}

// Delete builds a DELETE FROM table WHERE ... statement, with the same
// where-state type parameter and run-time ErrWhereRequired check as Update.
type Delete[W whereState] struct {
	table string
	where *WhereCond
}

// DeleteFrom starts a Delete for the given table.
func DeleteFrom(table string) Delete[WithoutWhere] {
	return Delete[WithoutWhere]{table: table}
}

// Where attaches the filter and returns the builder typed as WithWhere.
func (b Delete[WithoutWhere]) Where(c WhereCond) Delete[WithWhere] {
	b.where = &c
	return Delete[WithWhere](b)
}

func (b Delete[W]) build() (string, []any, error) {
	if !SafeIdent(b.table) {
		return "", nil, fmt.Errorf("query: unsafe table name %q", b.table)
	}
	if b.where == nil {
		return "", nil, ErrWhereRequired
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s", b.table, b.where.sql)
	return q, b.where.args, nil
}

// Exec runs the delete and returns the affected row count.
func (b Delete[WithWhere]) Exec(ctx context.Context, db *sqlx.DB) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = db.Rebind(q)
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("query: delete from %s: %w", b.table, err)
	}
	return res.RowsAffected()
}

// ExecTx is Exec against an open transaction.
func (b Delete[WithWhere]) ExecTx(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = tx.Rebind(q)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("query: delete from %s: %w", b.table, err)
	}
	return res.RowsAffected()
}
