// Package querysql compiles queryir requests to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/healthstore/internal/queryir"
)

// SQLCompiler compiles queryir requests to SQLite SQL.
//
// CRITICAL: values are always bound as ? parameters, never interpolated.
// Identifiers are checked by queryir.Validate before any text is produced.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// CompileRead compiles a read request, including its union legs.
func (c *SQLCompiler) CompileRead(r *queryir.ReadRequest) (string, []any, error) {
	if err := queryir.Validate(r).Err(); err != nil {
		return "", nil, err
	}
	if len(r.Unions) == 0 {
		var b builder
		c.writeSelect(&b, r)
		c.writeOrderLimit(&b, r, false)
		return b.String(), b.params, nil
	}

	var b builder
	b.WriteString("SELECT * FROM (")
	c.writeSelect(&b, r)
	for _, leg := range r.Unions {
		b.WriteString(" UNION ")
		c.writeSelect(&b, leg)
	}
	b.WriteString(")")
	c.writeOrderLimit(&b, r, true)
	return b.String(), b.params, nil
}

// CompileInsert compiles the parent row of an upsert as a plain INSERT.
// Columns are emitted in sorted order so the text is deterministic.
func (c *SQLCompiler) CompileInsert(u *queryir.UpsertRequest) (string, []any, error) {
	if err := queryir.Validate(u).Err(); err != nil {
		return "", nil, err
	}
	cols := sortedColumns(u.Values)
	var b builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (", u.Table, strings.Join(cols, ", "))
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.bind(u.Values[col])
	}
	b.WriteString(")")
	return b.String(), b.params, nil
}

// CompileUpdate compiles a full-row replacement of the rows matching where.
// Every column in u.Values is overwritten; nothing is merged.
func (c *SQLCompiler) CompileUpdate(u *queryir.UpsertRequest, where queryir.Predicate) (string, []any, error) {
	if err := queryir.Validate(u).Err(); err != nil {
		return "", nil, err
	}
	if where == nil {
		return "", nil, fmt.Errorf("update of %s requires a where clause", u.Table)
	}
	if err := queryir.Validate(where).Err(); err != nil {
		return "", nil, err
	}
	cols := sortedColumns(u.Values)
	var b builder
	fmt.Fprintf(&b, "UPDATE %s SET ", u.Table)
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col)
		b.WriteString(" = ")
		b.bind(u.Values[col])
	}
	b.WriteString(" WHERE ")
	c.writePredicate(&b, where)
	return b.String(), b.params, nil
}

// CompileDelete compiles a delete request. Sub-selects become
// "id IN (SELECT ...)" so no join is ever needed in the DELETE itself.
func (c *SQLCompiler) CompileDelete(d *queryir.DeleteRequest) (string, []any, error) {
	if err := queryir.Validate(d).Err(); err != nil {
		return "", nil, err
	}
	var b builder
	b.WriteString("DELETE FROM ")
	b.WriteString(d.Table)
	if pred := d.Predicate(); pred != nil {
		b.WriteString(" WHERE ")
		c.writePredicate(&b, pred)
	}
	return b.String(), b.params, nil
}

// CompilePredicate compiles a standalone where-clause fragment.
func (c *SQLCompiler) CompilePredicate(p queryir.Predicate) (string, []any, error) {
	if err := queryir.Validate(p).Err(); err != nil {
		return "", nil, err
	}
	var b builder
	c.writePredicate(&b, p)
	return b.String(), b.params, nil
}

// CompileCreateTable returns the statements creating t, its indexes and all
// of its child tables. Every statement is guarded with IF NOT EXISTS so the
// list can be re-run.
func (c *SQLCompiler) CompileCreateTable(t *queryir.CreateTableRequest) ([]string, error) {
	if err := queryir.Validate(t).Err(); err != nil {
		return nil, err
	}
	var stmts []string
	t.Walk(func(table *queryir.CreateTableRequest) {
		stmts = append(stmts, createTableSQL(table))
		for _, idx := range table.Indexes {
			stmts = append(stmts, CreateIndexSQL(table.Table, idx))
		}
	})
	return stmts, nil
}

// CompileAddColumn returns the ALTER TABLE statement adding col to table.
// SQLite cannot add PRIMARY KEY, UNIQUE or NOT NULL columns without a default.
func (c *SQLCompiler) CompileAddColumn(table string, col queryir.ColumnDef) (string, error) {
	candidate := &queryir.CreateTableRequest{Table: table, Columns: []queryir.ColumnDef{col}}
	if err := queryir.Validate(candidate).Err(); err != nil {
		return "", err
	}
	if col.PrimaryKey || col.Unique || col.NotNull {
		return "", fmt.Errorf("column %s.%s cannot be added with PRIMARY KEY, UNIQUE or NOT NULL", table, col.Name)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnSQL(col)), nil
}

// CreateIndexSQL renders an idempotent CREATE INDEX statement.
func CreateIndexSQL(table string, idx queryir.IndexDef) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, idx.Name, table, strings.Join(idx.Columns, ", "))
}

func createTableSQL(t *queryir.CreateTableRequest) string {
	parts := make([]string, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, col := range t.Columns {
		parts = append(parts, columnSQL(col))
	}
	for _, fk := range t.ForeignKeys {
		part := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", fk.Column, fk.RefTable, fk.RefColumn)
		if fk.OnDelete != "" {
			part += " ON DELETE " + fk.OnDelete
		}
		parts = append(parts, part)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Table, strings.Join(parts, ", "))
}

func columnSQL(col queryir.ColumnDef) string {
	var b strings.Builder
	b.WriteString(col.Name)
	b.WriteString(" ")
	b.WriteString(col.Type)
	if col.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if col.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	if col.Unique {
		b.WriteString(" UNIQUE")
	}
	if col.Generated != "" {
		fmt.Fprintf(&b, " GENERATED ALWAYS AS (%s) VIRTUAL", col.Generated)
	}
	return b.String()
}

// writeSelect renders one SELECT without ORDER BY or LIMIT.
func (c *SQLCompiler) writeSelect(b *builder, r *queryir.ReadRequest) {
	b.WriteString("SELECT ")
	if r.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(r.Columns) == 0 {
		b.WriteString(r.Table + ".*")
	} else {
		b.WriteString(strings.Join(r.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(r.Table)

	prev := r.Table
	for j := r.Join; j != nil; j = j.Next {
		if j.Kind == queryir.JoinLeft {
			b.WriteString(" LEFT JOIN ")
		} else {
			b.WriteString(" INNER JOIN ")
		}
		fmt.Fprintf(b, "%s ON %s = %s", j.Table, qualify(prev, j.SelfColumn), qualify(j.Table, j.OtherColumn))
		if j.Filter != nil {
			b.WriteString(" AND ")
			c.writeGrouped(b, j.Filter)
		}
		prev = j.Table
	}

	if r.Where != nil {
		b.WriteString(" WHERE ")
		c.writePredicate(b, r.Where)
	}
}

// writeOrderLimit renders ORDER BY and LIMIT. Over a union the combined
// result only exposes bare column names, so qualifiers are dropped.
func (c *SQLCompiler) writeOrderLimit(b *builder, r *queryir.ReadRequest, unqualify bool) {
	if len(r.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range r.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			col := o.Column
			if unqualify {
				col = bareColumn(col)
			}
			b.WriteString(col)
			if o.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}
	if r.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.bind(r.Limit)
	}
}

func (c *SQLCompiler) writePredicate(b *builder, p queryir.Predicate) {
	switch pred := p.(type) {
	case queryir.Equals:
		if pred.Value == nil {
			b.WriteString(pred.Column + " IS NULL")
			return
		}
		b.WriteString(pred.Column + " = ")
		b.bind(pred.Value)
	case queryir.In:
		if len(pred.Values) == 0 {
			b.WriteString("0 = 1")
			return
		}
		b.WriteString(pred.Column + " IN (")
		for i, v := range pred.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.bind(v)
		}
		b.WriteString(")")
	case queryir.Compare:
		fmt.Fprintf(b, "%s %s ", pred.Column, pred.Op)
		b.bind(pred.Value)
	case queryir.IsNull:
		if pred.Not {
			b.WriteString(pred.Column + " IS NOT NULL")
		} else {
			b.WriteString(pred.Column + " IS NULL")
		}
	case queryir.And:
		if len(pred.Predicates) == 0 {
			b.WriteString("1 = 1")
			return
		}
		for i, sub := range pred.Predicates {
			if i > 0 {
				b.WriteString(" AND ")
			}
			c.writeGrouped(b, sub)
		}
	case queryir.Or:
		if len(pred.Predicates) == 0 {
			b.WriteString("0 = 1")
			return
		}
		for i, sub := range pred.Predicates {
			if i > 0 {
				b.WriteString(" OR ")
			}
			c.writeGrouped(b, sub)
		}
	case queryir.InSubquery:
		b.WriteString(pred.Column + " IN (")
		c.writeSelect(b, pred.Sub)
		c.writeOrderLimit(b, pred.Sub, false)
		b.WriteString(")")
	}
}

// writeGrouped parenthesizes compound predicates so AND/OR precedence never
// depends on the surrounding expression.
func (c *SQLCompiler) writeGrouped(b *builder, p queryir.Predicate) {
	switch pred := p.(type) {
	case queryir.And:
		if len(pred.Predicates) > 1 {
			b.WriteString("(")
			c.writePredicate(b, p)
			b.WriteString(")")
			return
		}
	case queryir.Or:
		if len(pred.Predicates) > 1 {
			b.WriteString("(")
			c.writePredicate(b, p)
			b.WriteString(")")
			return
		}
	}
	c.writePredicate(b, p)
}

// builder accumulates SQL text and bound parameters together so their order
// cannot drift apart.
type builder struct {
	strings.Builder
	params []any
}

func (b *builder) bind(v any) {
	b.WriteString("?")
	b.params = append(b.params, v)
}

func sortedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func qualify(table, column string) string {
	if strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

func bareColumn(column string) string {
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[i+1:]
	}
	return column
}
