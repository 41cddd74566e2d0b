// Package querybuilder assembles parameterized Postgres statements.
// Conditions carry ? placeholders internally; ToSQL numbers them into
// $1..$n once the full statement is known.
package querybuilder

import (
	"fmt"
	"strconv"
	"strings"
)

// Cond is one WHERE fragment plus its bind arguments.
type Cond struct {
	frag string
	args []any
}

func Eq(column string, value any) Cond {
	return Cond{frag: column + " = ?", args: []any{value}}
}

// In yields a never-matching fragment for an empty value set, so
// callers do not need to special-case it.
func In(column string, values []any) Cond {
	if len(values) == 0 {
		return Cond{frag: "1=0"}
	}
	marks := strings.Repeat("?, ", len(values))
	return Cond{
		frag: column + " IN (" + marks[:len(marks)-2] + ")",
		args: append([]any(nil), values...),
	}
}

// Expr embeds a raw fragment with ? placeholders, for operators the
// named constructors do not cover.
func Expr(expr string, args ...any) Cond {
	return Cond{frag: expr, args: args}
}

type SelectBuilder struct {
	columns []string
	table   string
	where   []Cond
	orderBy []string
	limit   int
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

func (b *SelectBuilder) Where(conds ...Cond) *SelectBuilder {
	b.where = append(b.where, conds...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("select: no columns")
	}
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("select: no table")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	args := writeWhere(&sb, b.where, nil)
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}

	return number(sb.String(), args)
}

type InsertBuilder struct {
	table   string
	columns []string
	rows    [][]any
	suffix  Cond
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// Suffix appends trailing SQL such as an ON CONFLICT clause. It may
// carry its own ? placeholders.
func (b *InsertBuilder) Suffix(sql string, args ...any) *InsertBuilder {
	b.suffix = Cond{frag: strings.TrimSpace(sql), args: args}
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("insert: no table")
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("insert: no columns")
	}
	if len(b.rows) == 0 {
		return "", nil, fmt.Errorf("insert: no values")
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(") VALUES ")

	marks := strings.Repeat("?, ", len(b.columns))
	rowTuple := "(" + marks[:len(marks)-2] + ")"
	args := make([]any, 0, len(b.rows)*len(b.columns))
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert: row %d has %d values for %d columns", i, len(row), len(b.columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rowTuple)
		args = append(args, row...)
	}

	if b.suffix.frag != "" {
		sb.WriteString(" ")
		sb.WriteString(b.suffix.frag)
		args = append(args, b.suffix.args...)
	}

	return number(sb.String(), args)
}

type UpdateBuilder struct {
	table   string
	columns []string
	values  []any
	where   []Cond
}

func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.columns = append(b.columns, column)
	b.values = append(b.values, value)
	return b
}

func (b *UpdateBuilder) Where(conds ...Cond) *UpdateBuilder {
	b.where = append(b.where, conds...)
	return b
}

func (b *UpdateBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("update: no table")
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("update: no set clauses")
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	for i, column := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(column)
		sb.WriteString(" = ?")
	}

	args := writeWhere(&sb, b.where, append([]any(nil), b.values...))
	return number(sb.String(), args)
}

func writeWhere(sb *strings.Builder, conds []Cond, args []any) []any {
	if len(conds) == 0 {
		return args
	}
	sb.WriteString(" WHERE ")
	for i, c := range conds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(c.frag)
		args = append(args, c.args...)
	}
	return args
}

// number rewrites every ? into a sequential $n placeholder and checks
// the placeholder count against the argument count.
func number(query string, args []any) (string, []any, error) {
	var sb strings.Builder
	sb.Grow(len(query) + len(args)*2)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			sb.WriteByte(query[i])
			continue
		}
		n++
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(n))
	}
	if n != len(args) {
		return "", nil, fmt.Errorf("querybuilder: %d placeholders for %d args", n, len(args))
	}
	return sb.String(), args, nil
}
