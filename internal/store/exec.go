package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
)

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// query runs a read request and returns its rows. A result larger than
// MaxReadRows is rejected rather than truncated.
func (s *Store) query(ctx context.Context, q migrate.Querier, r *queryir.ReadRequest) ([]record.Row, error) {
	stmt, args, err := s.compiler.CompileRead(r)
	if err != nil {
		return nil, fmt.Errorf("compile read %s: %w", r.Table, err)
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s: columns: %w", r.Table, err)
	}
	out := []record.Row{}
	for rows.Next() {
		if len(out) == s.limits.MaxReadRows {
			return nil, &errs.Error{
				Code:    errs.CodeIntegrity,
				Message: fmt.Sprintf("result exceeds the maximum of %d rows", s.limits.MaxReadRows),
				Details: map[string]string{"table": r.Table},
			}
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.Table, err)
		}
		row := make(record.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.Table, err)
	}
	return out, nil
}

// insert writes u and its child rows, binding each child's parent column
// to the new row id.
func (s *Store) insert(ctx context.Context, q migrate.Querier, u *queryir.UpsertRequest) (int64, error) {
	stmt, args, err := s.compiler.CompileInsert(u)
	if err != nil {
		return 0, fmt.Errorf("compile insert %s: %w", u.Table, err)
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, classifyWriteError(u.Table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", u.Table, err)
	}
	if err := s.insertChildren(ctx, q, u, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertChildren(ctx context.Context, q migrate.Querier, u *queryir.UpsertRequest, parentID int64) error {
	for _, child := range u.Children {
		child.Request.Values[child.ParentColumn] = parentID
		if _, err := s.insert(ctx, q, child.Request); err != nil {
			return err
		}
	}
	return nil
}

// overwrite replaces every column of row id with u's values, then deletes
// and re-inserts the child rows.
func (s *Store) overwrite(ctx context.Context, q migrate.Querier, u *queryir.UpsertRequest, idColumn string, id int64) error {
	stmt, args, err := s.compiler.CompileUpdate(u, queryir.Eq(idColumn, id))
	if err != nil {
		return fmt.Errorf("compile update %s: %w", u.Table, err)
	}
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return classifyWriteError(u.Table, err)
	}
	for _, child := range u.ReplaceChildren {
		del := &queryir.DeleteRequest{Table: child.Table, Where: queryir.Eq(child.ParentColumn, id)}
		if _, err := s.delete(ctx, q, del); err != nil {
			return err
		}
	}
	return s.insertChildren(ctx, q, u, id)
}

// delete runs d and returns the number of rows removed.
func (s *Store) delete(ctx context.Context, q migrate.Querier, d *queryir.DeleteRequest) (int64, error) {
	stmt, args, err := s.compiler.CompileDelete(d)
	if err != nil {
		return 0, fmt.Errorf("compile delete %s: %w", d.Table, err)
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", d.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: rows affected: %w", d.Table, err)
	}
	return n, nil
}

// classifyWriteError maps unique-constraint failures to Conflict errors
// naming the first offending column. Both drivers report them with the
// same SQLite message text.
func classifyWriteError(table string, err error) error {
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return fmt.Errorf("write %s: %w", table, err)
	}
	cols := msg[i+len(marker):]
	if j := strings.IndexAny(cols, " ,)"); j >= 0 {
		cols = cols[:j]
	}
	field := cols
	if k := strings.LastIndex(field, "."); k >= 0 {
		field = field[k+1:]
	}
	return errs.Conflict(field, "%s already exists", field)
}
