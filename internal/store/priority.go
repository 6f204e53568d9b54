package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/ir"
	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// SetPriorityList replaces the ordered package list of category. An empty
// list removes priority ordering for the category.
func (s *Store) SetPriorityList(ctx context.Context, category record.Category, packages []string) (err error) {
	defer s.observe("set_priority", time.Now(), &err)
	if !record.ValidCategory(category) {
		return errs.ValidationField("category", "unknown category %q", category)
	}
	seen := make(map[string]bool, len(packages))
	order := make(ir.Array, 0, len(packages))
	for _, pkg := range packages {
		if pkg == "" {
			return errs.ValidationField("packages", "empty package name")
		}
		if seen[pkg] {
			return errs.ValidationField("packages", "package %s listed twice", pkg)
		}
		seen[pkg] = true
		order = append(order, ir.String(pkg))
	}
	encoded, err := ir.MarshalCanonical(order)
	if err != nil {
		return fmt.Errorf("encode priority list: %w", err)
	}

	u := &queryir.UpsertRequest{
		Table: schema.PriorityTable,
		Values: map[string]any{
			schema.PriorityCategory: string(category),
			schema.PriorityOrder:    string(encoded),
		},
		UniqueGroups: [][]string{{schema.PriorityCategory}},
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := s.query(ctx, tx, u.ConflictLookup(schema.RowID))
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			_, err = s.insert(ctx, tx, u)
			return err
		}
		id, err := rows[0].Int64(schema.RowID)
		if err != nil {
			return err
		}
		return s.overwrite(ctx, tx, u, schema.RowID, id)
	})
}

// PriorityList returns the ordered package list of category, empty when
// none is configured.
func (s *Store) PriorityList(ctx context.Context, category record.Category) ([]string, error) {
	return s.priorityList(ctx, s.db, category)
}

func (s *Store) priorityList(ctx context.Context, q migrate.Querier, category record.Category) ([]string, error) {
	r := queryir.Read(schema.PriorityTable).
		Select(schema.PriorityOrder).
		Filter(queryir.Eq(schema.PriorityCategory, string(category)))
	rows, err := s.query(ctx, q, r)
	if err != nil {
		return nil, fmt.Errorf("priority list %s: %w", category, err)
	}
	packages := []string{}
	if len(rows) == 0 {
		return packages, nil
	}
	if err := json.Unmarshal([]byte(rows[0].String(schema.PriorityOrder)), &packages); err != nil {
		return nil, fmt.Errorf("priority list %s: %w", category, err)
	}
	return packages, nil
}
