package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// DeleteRecords deletes records of type t owned by caller.
//
// Every id must name exactly one stored record owned by caller; otherwise
// nothing is deleted and a NotFound error names the first offending id and
// whether it does not exist or belongs to another app.
func (s *Store) DeleteRecords(ctx context.Context, caller identity.Caller, t record.Type, ids []uuid.UUID) (err error) {
	defer s.observe("delete", time.Now(), &err)

	h, ok := record.Lookup(t)
	if !ok {
		return errs.ValidationField("record_type", "unknown record type %q", t)
	}
	if !s.oracle.HasWritePermission(caller.PackageName) {
		return errs.Permission("%s has no write permission", caller.PackageName)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return errs.ValidationField("ids", "at least one id is required")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, _, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		matchIDs := queryir.OneOf(record.ColUUID, uuidBytes(ids))
		r := queryir.Read(h.Table).Select(record.ColUUID, record.ColAppID).Filter(matchIDs)
		rows, err := s.query(ctx, tx, r)
		if err != nil {
			return err
		}
		if err := checkTargets(ids, rows, record.ColUUID, record.ColAppID, appID); err != nil {
			return err
		}
		n, err := s.delete(ctx, tx, &queryir.DeleteRequest{
			Table:       h.Table,
			IDColumn:    schema.RowID,
			OwnerColumn: record.ColAppID,
			OwnerID:     appID,
			SubSelect:   queryir.Read(h.Table).Select(schema.RowID).Filter(matchIDs),
		})
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return errs.Integrity("deleted %d %s records, expected %d", n, t, len(ids))
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{RecordTypes: []string{string(t)}, Operation: OperationDelete})
	})
	if err != nil {
		return err
	}
	s.metrics.AddRows("delete", len(ids))
	return nil
}

// DeleteRecordsByFilter deletes every record of the given types owned by
// caller whose start time lies in rng. A nil rng matches all times. It
// returns the number of records removed.
func (s *Store) DeleteRecordsByFilter(ctx context.Context, caller identity.Caller, types []record.Type, rng *TimeRange) (deleted int64, err error) {
	defer s.observe("delete_by_filter", time.Now(), &err)

	if !s.oracle.HasWritePermission(caller.PackageName) {
		return 0, errs.Permission("%s has no write permission", caller.PackageName)
	}
	if len(types) == 0 {
		return 0, errs.ValidationField("record_types", "at least one record type is required")
	}
	helpers := make([]record.Helper, 0, len(types))
	for _, t := range types {
		h, ok := record.Lookup(t)
		if !ok {
			return 0, errs.ValidationField("record_type", "unknown record type %q", t)
		}
		helpers = append(helpers, h)
	}
	if rng != nil && rng.Start >= rng.End {
		return 0, errs.ValidationField("range", "range start must be before end")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, known, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil || !known {
			return err
		}
		touched := []string{}
		for _, h := range helpers {
			var where queryir.Predicate
			if rng != nil {
				col := h.StartColumn()
				if rng.Local {
					col = h.LocalStartColumn()
				}
				where = queryir.AllOf(queryir.Ge(col, rng.Start), queryir.Lt(col, rng.End))
			}
			n, err := s.delete(ctx, tx, &queryir.DeleteRequest{
				Table:       h.Table,
				OwnerColumn: record.ColAppID,
				OwnerID:     appID,
				Where:       where,
			})
			if err != nil {
				return err
			}
			if n > 0 {
				touched = append(touched, string(h.Type))
			}
			deleted += n
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{RecordTypes: touched, Operation: OperationDelete})
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddRows("delete_by_filter", int(deleted))
	return deleted, nil
}

// checkTargets verifies that rows hold exactly one row per id, each owned
// by appID.
func checkTargets(ids []uuid.UUID, rows []record.Row, idColumn, ownerColumn string, appID int64) error {
	found := make(map[uuid.UUID][]int64, len(rows))
	for _, row := range rows {
		id, err := row.UUID(idColumn)
		if err != nil {
			return err
		}
		owner, err := row.Int64(ownerColumn)
		if err != nil {
			return err
		}
		found[id] = append(found[id], owner)
	}
	for _, id := range ids {
		owners := found[id]
		switch {
		case len(owners) == 0:
			return errs.NotFound(map[string]string{"id": id.String(), "reason": "does not exist"}, "no record with id %s", id)
		case len(owners) > 1:
			return errs.NotFound(map[string]string{"id": id.String(), "reason": "ambiguous"}, "id %s matches %d rows", id, len(owners))
		case owners[0] != appID:
			return errs.NotFound(map[string]string{"id": id.String(), "reason": "not owned by caller"}, "id %s belongs to another app", id)
		}
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func uuidBytes(ids []uuid.UUID) [][]byte {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = record.UUIDBytes(id)
	}
	return out
}
