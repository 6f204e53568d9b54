package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/querysql"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// Schema versions:
// 1 - registry tables, access logs and one table per record type
// 2 - category priority lists
// 3 - medical data sources and resources
// 4 - fhir_version on medical data sources
// 5 - generated local-time columns on record tables
func newSequencer(logger *slog.Logger) (*migrate.Sequencer, error) {
	return migrate.New(logger,
		migrate.Step{Version: 1, Name: "core and record tables", Apply: migrateToV1},
		migrate.Step{Version: 2, Name: "priority lists", Apply: migrateToV2},
		migrate.Step{Version: 3, Name: "medical tables", Apply: migrateToV3},
		migrate.Step{Version: 4, Name: "data source fhir version", Apply: migrateToV4},
		migrate.Step{Version: 5, Name: "local time columns", Apply: migrateToV5},
	)
}

func migrateToV1(ctx context.Context, tx *sql.Tx) error {
	if err := migrate.CreateTables(ctx, tx, schema.Core()...); err != nil {
		return err
	}
	tables := make([]*queryir.CreateTableRequest, 0, len(record.Types()))
	for _, t := range record.Types() {
		tables = append(tables, record.MustLookup(t).BaseTableRequest())
	}
	return migrate.CreateTables(ctx, tx, tables...)
}

func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	return migrate.CreateTables(ctx, tx, schema.Priority())
}

func migrateToV3(ctx context.Context, tx *sql.Tx) error {
	return migrate.CreateTables(ctx, tx, schema.Medical()...)
}

// migrateToV4 adds the FHIR version column, which data sources created
// before it leave NULL.
func migrateToV4(ctx context.Context, tx *sql.Tx) error {
	return migrate.AddColumns(ctx, tx, schema.MedicalDataSourceTable, schema.FHIRVersionColumn())
}

// migrateToV5 adds the virtual local-time columns and indexes them for
// local-window queries.
func migrateToV5(ctx context.Context, tx *sql.Tx) error {
	for _, t := range record.Types() {
		h := record.MustLookup(t)
		if err := migrate.AddColumns(ctx, tx, h.Table, h.LocalTimeColumns()...); err != nil {
			return err
		}
		idx := queryir.IndexDef{Name: "idx_" + h.Table + "_local_start", Columns: []string{h.LocalStartColumn()}}
		if _, err := tx.ExecContext(ctx, querysql.CreateIndexSQL(h.Table, idx)); err != nil {
			return err
		}
	}
	return nil
}
