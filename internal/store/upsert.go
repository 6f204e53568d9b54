package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// UpsertOutcome says what an upsert did with one record.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota
	Overwritten
	Deduplicated
	KeptNewer
)

func (o UpsertOutcome) String() string {
	return [...]string{"inserted", "overwritten", "deduplicated", "kept_newer"}[o]
}

func (o UpsertOutcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UpsertResult reports the stored identity of one upserted record.
type UpsertResult struct {
	UUID    uuid.UUID     `json:"uuid"`
	Outcome UpsertOutcome `json:"outcome"`
}

// UpsertRecords writes records on behalf of caller, who becomes their
// owner. All records commit together or not at all.
//
// A record whose dedupe hash matches a stored row with another uuid is a
// content duplicate: the stored uuid is kept and the row is overwritten
// regardless of versions. A record whose uuid matches a stored row
// overwrites it only when its client record version is at least the stored
// one. Anything else is inserted.
func (s *Store) UpsertRecords(ctx context.Context, caller identity.Caller, records []record.Record) (results []UpsertResult, err error) {
	started := time.Now()
	defer s.observe("upsert", started, &err)

	if !s.oracle.HasWritePermission(caller.PackageName) {
		return nil, errs.Permission("%s has no write permission", caller.PackageName)
	}
	if len(records) == 0 {
		return []UpsertResult{}, nil
	}

	now := s.nowMillis()
	for i, rec := range records {
		if rec == nil {
			return nil, errs.ValidationField("records", "record %d is nil", i)
		}
		h, ok := record.Lookup(rec.Type())
		if !ok {
			return nil, errs.ValidationField("record_type", "unknown record type %q", rec.Type())
		}
		m := rec.Meta()
		m.PackageName = caller.PackageName
		m.LastModifiedTime = now
		record.EnsureUUID(rec)
		if err := h.Validate(rec); err != nil {
			return nil, err
		}
	}

	results = make([]UpsertResult, 0, len(records))
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, err := s.ensureApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		types := make(map[string]bool)
		for _, rec := range records {
			res, err := s.upsertRecord(ctx, tx, appID, rec)
			if err != nil {
				return err
			}
			results = append(results, res)
			types[string(rec.Type())] = true
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{RecordTypes: keys(types), Operation: OperationUpsert})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddRows("upsert", len(results))
	return results, nil
}

func (s *Store) upsertRecord(ctx context.Context, tx *sql.Tx, appID int64, rec record.Record) (UpsertResult, error) {
	h := record.MustLookup(rec.Type())
	hash, err := h.DedupeHash(rec)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("dedupe hash: %w", err)
	}
	deviceID, err := s.ensureDevice(ctx, tx, rec.Meta().Device)
	if err != nil {
		return UpsertResult{}, err
	}

	req := s.recordUpsertRequest(h, rec, appID, deviceID, hash)
	rows, err := s.query(ctx, tx, req.ConflictLookup(
		schema.RowID, record.ColUUID, record.ColAppID, record.ColClientRecordVersion, record.ColDedupeHash))
	if err != nil {
		return UpsertResult{}, err
	}

	incoming := rec.Meta()
	var byHash, byUUID record.Row
	for _, row := range rows {
		stored, err := row.UUID(record.ColUUID)
		if err != nil {
			return UpsertResult{}, err
		}
		if b, ok := row[record.ColDedupeHash].([]byte); ok && bytes.Equal(b, hash) {
			byHash = row
		}
		if stored == incoming.UUID {
			byUUID = row
		}
	}

	switch {
	case byHash != nil:
		stored, _ := byHash.UUID(record.ColUUID)
		if stored == incoming.UUID {
			return s.overwriteIfNewer(ctx, tx, req, byHash, rec, appID)
		}
		// Content duplicate: adopt the stored identity.
		incoming.UUID = stored
		req = s.recordUpsertRequest(h, rec, appID, deviceID, hash)
		id, err := byHash.Int64(schema.RowID)
		if err != nil {
			return UpsertResult{}, err
		}
		if err := s.overwrite(ctx, tx, req, schema.RowID, id); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{UUID: stored, Outcome: Deduplicated}, nil

	case byUUID != nil:
		return s.overwriteIfNewer(ctx, tx, req, byUUID, rec, appID)

	default:
		if _, err := s.insert(ctx, tx, req); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{UUID: incoming.UUID, Outcome: Inserted}, nil
	}
}

func (s *Store) overwriteIfNewer(ctx context.Context, tx *sql.Tx, req *queryir.UpsertRequest, row record.Row, rec record.Record, appID int64) (UpsertResult, error) {
	m := rec.Meta()
	owner, err := row.Int64(record.ColAppID)
	if err != nil {
		return UpsertResult{}, err
	}
	if owner != appID {
		return UpsertResult{}, errs.Conflict(record.ColUUID, "uuid %s belongs to another app", m.UUID)
	}
	version, err := row.Int64(record.ColClientRecordVersion)
	if err != nil {
		return UpsertResult{}, err
	}
	if m.ClientRecordVersion < version {
		return UpsertResult{UUID: m.UUID, Outcome: KeptNewer}, nil
	}
	id, err := row.Int64(schema.RowID)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := s.overwrite(ctx, tx, req, schema.RowID, id); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{UUID: m.UUID, Outcome: Overwritten}, nil
}

func (s *Store) recordUpsertRequest(h record.Helper, rec record.Record, appID int64, deviceID any, hash []byte) *queryir.UpsertRequest {
	values := h.Values(rec)
	values[record.ColAppID] = appID
	values[record.ColDeviceID] = deviceID
	values[record.ColDedupeHash] = hash
	return &queryir.UpsertRequest{
		Table:           h.Table,
		Values:          values,
		UniqueGroups:    [][]string{{record.ColDedupeHash}, {record.ColUUID}},
		Children:        h.ChildUpserts(rec),
		ReplaceChildren: h.ReplaceChildren(),
	}
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
