// Package query is a tiny SQL builder used by internal/store. It is
// generalized from the dialect-specific query builder in the teacher's
// mysql package down to the subset SQLite and MySQL share: every
// placeholder is written as "?" and sqlx.DB.Rebind adapts it to whichever
// driver is in use. The builder never emits dialect-specific upsert syntax.
package query

import (
	"fmt"
	"strings"
)

// WhereCond is an immutable WHERE fragment paired with its bind arguments.
type WhereCond struct {
	sql  string
	args []any
}

// SQL returns the fragment's raw SQL text.
func (c WhereCond) SQL() string { return c.sql }

// Args returns the fragment's bind arguments, in positional order.
func (c WhereCond) Args() []any { return c.args }

func (c WhereCond) isEmpty() bool { return strings.TrimSpace(c.sql) == "" }

// Eq builds "col = ?".
func Eq(col string, v any) WhereCond {
	return WhereCond{sql: fmt.Sprintf("%s = ?", col), args: []any{v}}
}

// NotEq builds "col <> ?".
func NotEq(col string, v any) WhereCond {
	return WhereCond{sql: fmt.Sprintf("%s <> ?", col), args: []any{v}}
}

// Lt builds "col < ?".
func Lt(col string, v any) WhereCond {
	return WhereCond{sql: fmt.Sprintf("%s < ?", col), args: []any{v}}
}

// Gte builds "col >= ?".
func Gte(col string, v any) WhereCond {
	return WhereCond{sql: fmt.Sprintf("%s >= ?", col), args: []any{v}}
}

// IsNull builds "col IS NULL".
func IsNull(col string) WhereCond {
	return WhereCond{sql: fmt.Sprintf("%s IS NULL", col)}
}

// In builds "col IN (?, ?, ...)". Returns an always-false condition when
// vals is empty, since "IN ()" is not valid SQL in either dialect.
func In(col string, vals []any) WhereCond {
	if len(vals) == 0 {
		return WhereCond{sql: "1 = 0"}
	}
	placeholders := make([]string, len(vals))
	for i := range vals {
		placeholders[i] = "?"
	}
	return WhereCond{
		sql:  fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")),
		args: vals,
	}
}

// Raw wraps a pre-built fragment, useful for conditions this package has no
// constructor for (e.g. "check_last_time + livecheck_period <= ?").
func Raw(sql string, args ...any) WhereCond {
	return WhereCond{sql: sql, args: args}
}

// And joins conditions with AND, parenthesizing each. Empty conditions are
// skipped so optional filters compose cleanly.
func And(conds ...WhereCond) WhereCond {
	return join(" AND ", conds)
}

// Or joins conditions with OR, parenthesizing each.
func Or(conds ...WhereCond) WhereCond {
	return join(" OR ", conds)
}

func join(sep string, conds []WhereCond) WhereCond {
	var parts []string
	var args []any
	for _, c := range conds {
		if c.isEmpty() {
			continue
		}
		parts = append(parts, "("+c.sql+")")
		args = append(args, c.args...)
	}
	return WhereCond{sql: strings.Join(parts, sep), args: args}
}

// SafeIdent reports whether s is safe to interpolate directly as a table or
// column identifier (used only for names that originate from Go source, e.g.
// table constants — never for user-supplied values).
func SafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r == '.' ||
			(r >= '0' && r <= '9') ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}
