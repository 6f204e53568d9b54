// Package migrate applies ordered schema version steps to a SQLite
// database.
//
// The schema version lives in PRAGMA user_version. Each step runs in its own
// transaction together with the version bump, so a crash leaves the database
// at the last fully applied version. Steps check for the objects they create
// (TableExists, ColumnExists) and skip work already done, which makes a
// retried upgrade safe even when a step's DDL had partially landed.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/querysql"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Step upgrades the schema from Version-1 to Version.
type Step struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// Sequencer runs steps in version order.
type Sequencer struct {
	steps  []Step
	logger *slog.Logger
}

// New returns a sequencer over steps, which must be numbered 1..n in order.
func New(logger *slog.Logger, steps ...Step) (*Sequencer, error) {
	for i, step := range steps {
		if step.Version != i+1 {
			return nil, fmt.Errorf("migration %q has version %d, want %d", step.Name, step.Version, i+1)
		}
		if step.Apply == nil {
			return nil, fmt.Errorf("migration %d (%s) has no Apply", step.Version, step.Name)
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sequencer{steps: steps, logger: logger}, nil
}

// Latest is the version the last step produces.
func (s *Sequencer) Latest() int {
	return len(s.steps)
}

// Run upgrades db to the latest version and returns the version it found
// and the version it left.
func (s *Sequencer) Run(ctx context.Context, db *sql.DB) (from, to int, err error) {
	return s.RunTo(ctx, db, s.Latest())
}

// RunTo upgrades db to target. A database already past target is left
// alone; a database newer than any known step is an error.
func (s *Sequencer) RunTo(ctx context.Context, db *sql.DB, target int) (from, to int, err error) {
	if target < 0 || target > s.Latest() {
		return 0, 0, fmt.Errorf("target version %d outside [0, %d]", target, s.Latest())
	}
	from, err = CurrentVersion(ctx, db)
	if err != nil {
		return 0, 0, err
	}
	if from > s.Latest() {
		return from, from, fmt.Errorf("database schema version %d is newer than supported version %d", from, s.Latest())
	}
	version := from
	for _, step := range s.steps {
		if step.Version <= version || step.Version > target {
			continue
		}
		if err := s.apply(ctx, db, step); err != nil {
			return from, version, err
		}
		version = step.Version
	}
	return from, version, nil
}

func (s *Sequencer) apply(ctx context.Context, db *sql.DB, step Step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", step.Version, err)
	}
	defer tx.Rollback()

	if err := step.Apply(ctx, tx); err != nil {
		return fmt.Errorf("migration %d (%s): %w", step.Version, step.Name, err)
	}
	// PRAGMA values cannot be bound; Version is an int.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.Version)); err != nil {
		return fmt.Errorf("migration %d: set user_version: %w", step.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", step.Version, err)
	}
	s.logger.Info("schema migrated", "version", step.Version, "step", step.Name)
	return nil
}

// CurrentVersion reads PRAGMA user_version.
func CurrentVersion(ctx context.Context, q Querier) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// TableExists reports whether table is present.
func TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// ColumnExists reports whether table has column. Generated columns are
// hidden from table_info, so the check uses table_xinfo.
func ColumnExists(ctx context.Context, q Querier, table, column string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_xinfo(?) WHERE name = ?", table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// CreateTables creates every table in reqs, with indexes and child tables.
// Statements are IF NOT EXISTS, so re-running is a no-op.
func CreateTables(ctx context.Context, q Querier, reqs ...*queryir.CreateTableRequest) error {
	compiler := querysql.NewSQLCompiler()
	for _, req := range reqs {
		stmts, err := compiler.CompileCreateTable(req)
		if err != nil {
			return fmt.Errorf("create %s: %w", req.Table, err)
		}
		for _, stmt := range stmts {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", req.Table, err)
			}
		}
	}
	return nil
}

// AddColumns adds each missing column to table and skips the ones already
// present.
func AddColumns(ctx context.Context, q Querier, table string, cols ...queryir.ColumnDef) error {
	compiler := querysql.NewSQLCompiler()
	for _, col := range cols {
		exists, err := ColumnExists(ctx, q, table, col.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt, err := compiler.CompileAddColumn(table, col)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
		}
	}
	return nil
}
