package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// AppInfo is a registered client application.
type AppInfo struct {
	ID          int64  `json:"id"`
	PackageName string `json:"package_name"`
	Name        string `json:"name,omitempty"`
}

// EnsureApp registers packageName if needed and returns its row id. A
// non-empty name replaces the stored display name.
func (s *Store) EnsureApp(ctx context.Context, packageName, name string) (id int64, err error) {
	defer s.observe("ensure_app", time.Now(), &err)
	if packageName == "" {
		return 0, errs.ValidationField(schema.PackageName, "package name is required")
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		id, err = s.ensureApp(ctx, tx, packageName)
		if err != nil || name == "" {
			return err
		}
		u := &queryir.UpsertRequest{Table: schema.AppInfoTable, Values: map[string]any{schema.AppName: name}}
		return s.overwrite(ctx, tx, u, schema.RowID, id)
	})
	return id, err
}

// AppIDFor returns the row id of packageName, reporting false when the
// package was never registered.
func (s *Store) AppIDFor(ctx context.Context, packageName string) (int64, bool, error) {
	return s.lookupApp(ctx, s.db, packageName)
}

// Apps lists registered applications by row id.
func (s *Store) Apps(ctx context.Context) ([]AppInfo, error) {
	rows, err := s.query(ctx, s.db, queryir.Read(schema.AppInfoTable).Order(schema.RowID, false))
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	apps := make([]AppInfo, 0, len(rows))
	for _, row := range rows {
		id, err := row.Int64(schema.RowID)
		if err != nil {
			return nil, fmt.Errorf("list apps: %w", err)
		}
		apps = append(apps, AppInfo{ID: id, PackageName: row.String(schema.PackageName), Name: row.String(schema.AppName)})
	}
	return apps, nil
}

func (s *Store) lookupApp(ctx context.Context, q migrate.Querier, packageName string) (int64, bool, error) {
	r := queryir.Read(schema.AppInfoTable).
		Select(schema.RowID).
		Filter(queryir.Eq(schema.PackageName, packageName))
	rows, err := s.query(ctx, q, r)
	if err != nil {
		return 0, false, fmt.Errorf("lookup app %s: %w", packageName, err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	id, err := rows[0].Int64(schema.RowID)
	return id, err == nil, err
}

func (s *Store) ensureApp(ctx context.Context, q migrate.Querier, packageName string) (int64, error) {
	id, ok, err := s.lookupApp(ctx, q, packageName)
	if err != nil || ok {
		return id, err
	}
	return s.insert(ctx, q, &queryir.UpsertRequest{
		Table:  schema.AppInfoTable,
		Values: map[string]any{schema.PackageName: packageName},
	})
}

// ensureDevice returns the device row id, or nil for an unknown device.
func (s *Store) ensureDevice(ctx context.Context, q migrate.Querier, d record.Device) (any, error) {
	if d == (record.Device{}) {
		return nil, nil
	}
	values := map[string]any{
		schema.DeviceManufacturer: d.Manufacturer,
		schema.DeviceModel:        d.Model,
		schema.DeviceType:         int64(d.Type),
	}
	u := &queryir.UpsertRequest{
		Table:        schema.DeviceInfoTable,
		Values:       values,
		UniqueGroups: [][]string{{schema.DeviceManufacturer, schema.DeviceModel, schema.DeviceType}},
	}
	rows, err := s.query(ctx, q, u.ConflictLookup(schema.RowID))
	if err != nil {
		return nil, fmt.Errorf("lookup device: %w", err)
	}
	if len(rows) > 0 {
		return rows[0].Int64(schema.RowID)
	}
	return s.insert(ctx, q, u)
}
