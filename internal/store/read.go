package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// TimeRange selects records whose start time lies in [Start, End). With
// Local set both bounds are wall-clock millis compared against each
// record's own local start time.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Local bool  `json:"local"`
}

// ReadRecordsRequest reads one record type either by uuid or by filter.
type ReadRecordsRequest struct {
	Type record.Type

	// IDs reads specific records. It cannot be combined with the filter
	// and pagination fields below.
	IDs []uuid.UUID

	Range      *TimeRange
	Origins    []string
	PageSize   int
	PageToken  string
	Descending bool
}

// ReadRecordsResult is one page of records.
type ReadRecordsResult struct {
	Records       []record.Record `json:"records"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// ReadRecords returns the records of req.Type that caller may see.
//
// Filtered reads are ordered by (start time, row id), ascending unless
// Descending is set, and paginated with an opaque token. Reads that can
// see other apps' rows write an access log entry in the same transaction.
func (s *Store) ReadRecords(ctx context.Context, caller identity.Caller, req ReadRecordsRequest) (res ReadRecordsResult, err error) {
	defer s.observe("read", time.Now(), &err)

	h, ok := record.Lookup(req.Type)
	if !ok {
		return ReadRecordsResult{}, errs.ValidationField("record_type", "unknown record type %q", req.Type)
	}
	byIDs := len(req.IDs) > 0
	if byIDs && (req.Range != nil || req.PageToken != "" || len(req.Origins) > 0) {
		return ReadRecordsResult{}, errs.ValidationField("ids", "ids cannot be combined with filters or page tokens")
	}
	if req.Range != nil && req.Range.Start >= req.Range.End {
		return ReadRecordsResult{}, errs.ValidationField("range", "range start must be before end")
	}
	pageSize, err := s.pageSize(req.PageSize)
	if err != nil {
		return ReadRecordsResult{}, err
	}
	var tok *timeToken
	if req.PageToken != "" {
		t, err := decodeTimeToken(req.PageToken)
		if err != nil {
			return ReadRecordsResult{}, err
		}
		if t.Ascending == req.Descending {
			return ReadRecordsResult{}, errs.ValidationField("page_token", "page token was issued for the opposite sort order")
		}
		tok = &t
	}

	scope, err := identity.Resolve(s.oracle, caller, []string{string(req.Type)})
	if err != nil {
		return ReadRecordsResult{}, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, known, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		where := recordFilter(h, req, tok)
		var legs []*queryir.ReadRequest
		if scope.SelfAllows(string(req.Type)) && known {
			legs = append(legs, recordRead(h, queryir.AllOf(where, queryir.Eq(h.Table+"."+record.ColAppID, appID))))
		}
		if scope.AnyOwnerAllows(string(req.Type)) {
			legs = append(legs, recordRead(h, where))
		}

		var rows []record.Row
		if len(legs) > 0 {
			r := legs[0].Union(legs[1:]...)
			startCol, idCol := h.Table+"."+h.StartColumn(), h.Table+"."+schema.RowID
			r.Order(startCol, req.Descending).Order(idCol, false)
			if !byIDs {
				offset := 0
				if tok != nil {
					offset = tok.Offset
				}
				r.WithLimit(pageSize + offset + 1)
			}
			if rows, err = s.query(ctx, tx, r); err != nil {
				return err
			}
		}

		page := rows
		if !byIDs {
			page, res.NextPageToken, err = paginate(h, rows, pageSize, tok, !req.Descending)
			if err != nil {
				return err
			}
		}
		if res.Records, err = s.decodeRecords(ctx, tx, h, page); err != nil {
			return err
		}
		if scope.SelfOnly() {
			return nil
		}
		returned := []string{}
		if len(res.Records) > 0 {
			returned = append(returned, string(req.Type))
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{RecordTypes: returned, Operation: OperationRead})
	})
	if err != nil {
		return ReadRecordsResult{}, err
	}
	s.metrics.AddRows("read", len(res.Records))
	return res, nil
}

func (s *Store) pageSize(n int) (int, error) {
	switch {
	case n == 0:
		return s.limits.DefaultPageSize, nil
	case n < 0 || n > s.limits.MaxPageSize:
		return 0, errs.ValidationField("page_size", "page size %d outside [1, %d]", n, s.limits.MaxPageSize)
	default:
		return n, nil
	}
}

// recordRead selects the record columns plus the owner package and device
// fields the decoder needs.
func recordRead(h record.Helper, where queryir.Predicate) *queryir.ReadRequest {
	t := h.Table
	joins := queryir.InnerJoin(schema.AppInfoTable, record.ColAppID, schema.RowID).
		Attach(queryir.LeftJoin(schema.DeviceInfoTable, t+"."+record.ColDeviceID, schema.RowID))
	return queryir.Read(t).
		Select(
			t+".*",
			schema.AppInfoTable+"."+schema.PackageName,
			schema.DeviceInfoTable+"."+schema.DeviceManufacturer,
			schema.DeviceInfoTable+"."+schema.DeviceModel,
			schema.DeviceInfoTable+"."+schema.DeviceType,
		).
		WithJoin(joins).
		Filter(where)
}

func recordFilter(h record.Helper, req ReadRecordsRequest, tok *timeToken) queryir.Predicate {
	t := h.Table
	var preds []queryir.Predicate
	if len(req.IDs) > 0 {
		ids := make([][]byte, len(req.IDs))
		for i, id := range req.IDs {
			ids[i] = record.UUIDBytes(id)
		}
		preds = append(preds, queryir.OneOf(t+"."+record.ColUUID, ids))
	}
	if req.Range != nil {
		col := t + "." + h.StartColumn()
		if req.Range.Local {
			col = t + "." + h.LocalStartColumn()
		}
		preds = append(preds, queryir.Ge(col, req.Range.Start), queryir.Lt(col, req.Range.End))
	}
	if len(req.Origins) > 0 {
		preds = append(preds, queryir.OneOf(schema.AppInfoTable+"."+schema.PackageName, req.Origins))
	}
	if tok != nil {
		col := t + "." + h.StartColumn()
		if tok.Ascending {
			preds = append(preds, queryir.Ge(col, tok.Timestamp))
		} else {
			preds = append(preds, queryir.Le(col, tok.Timestamp))
		}
	}
	return queryir.AllOf(preds...)
}

// paginate drops the rows already returned at the token's timestamp, cuts
// one page and issues the next token when a further row exists.
func paginate(h record.Helper, rows []record.Row, pageSize int, tok *timeToken, ascending bool) ([]record.Row, string, error) {
	skipped := 0
	if tok != nil {
		for skipped < tok.Offset && skipped < len(rows) {
			ts, err := rows[skipped].Int64(h.StartColumn())
			if err != nil {
				return nil, "", err
			}
			if ts != tok.Timestamp {
				break
			}
			skipped++
		}
	}
	rest := rows[skipped:]
	if len(rest) <= pageSize {
		return rest, "", nil
	}
	page := rest[:pageSize]
	last, err := page[len(page)-1].Int64(h.StartColumn())
	if err != nil {
		return nil, "", err
	}
	offset := 0
	for i := len(page) - 1; i >= 0; i-- {
		ts, err := page[i].Int64(h.StartColumn())
		if err != nil {
			return nil, "", err
		}
		if ts != last {
			break
		}
		offset++
	}
	if tok != nil && tok.Timestamp == last {
		offset += skipped
	}
	next := timeToken{Timestamp: last, Offset: offset, Ascending: ascending}
	return page, next.encode(), nil
}

// decodeRecords turns rows into records and attaches their child rows,
// read with one query per child table.
func (s *Store) decodeRecords(ctx context.Context, q migrate.Querier, h record.Helper, rows []record.Row) ([]record.Record, error) {
	records := make([]record.Record, 0, len(rows))
	byRowID := make(map[int64]record.Record, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		rec, err := h.Decode(row)
		if err != nil {
			return nil, err
		}
		id, err := row.Int64(schema.RowID)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		byRowID[id] = rec
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return records, nil
	}

	for _, child := range h.Children() {
		r := queryir.Read(child.Table.Table).
			Filter(queryir.OneOf(schema.ParentKey, ids)).
			Order(schema.ParentKey, false).
			Order(child.OrderColumn, false)
		childRows, err := s.query(ctx, q, r)
		if err != nil {
			return nil, err
		}
		groups, err := record.GroupByParent(childRows, schema.ParentKey)
		if err != nil {
			return nil, err
		}
		grouped := make(map[int64][]record.Row, len(groups))
		for _, g := range groups {
			grouped[g.Key] = g.Rows
		}
		for id, rec := range byRowID {
			if err := h.AttachChildren(rec, child.Table.Table, grouped[id]); err != nil {
				return nil, fmt.Errorf("attach %s: %w", child.Table.Table, err)
			}
		}
	}
	return records, nil
}
