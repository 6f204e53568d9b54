package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/roach88/healthstore/internal/aggregate"
	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
)

// Aggregate evaluates req over the records caller may read.
//
// caller must be able to read the record type of every requested
// aggregation. Derivation inputs the caller cannot read are treated as
// absent, so the derivation falls back to the next source.
func (s *Store) Aggregate(ctx context.Context, caller identity.Caller, req aggregate.Request) (buckets []aggregate.Bucket, err error) {
	defer s.observe("aggregate", time.Now(), &err)

	var inputs []string
	seen := make(map[record.Type]bool)
	for _, t := range req.Types {
		for _, rt := range t.Inputs() {
			if !seen[rt] {
				seen[rt] = true
				inputs = append(inputs, string(rt))
			}
		}
	}
	scope, err := identity.Resolve(s.oracle, caller, inputs)
	if err != nil {
		return nil, err
	}
	for _, t := range req.Types {
		rt, ok := t.RecordType()
		if !ok {
			continue
		}
		if !scope.SelfAllows(string(rt)) && !scope.AnyOwnerAllows(string(rt)) {
			return nil, errs.Permission("%s cannot read %s", caller.PackageName, rt)
		}
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, known, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		src := &scopedSource{store: s, tx: tx, scope: scope, appID: appID, known: known, read: make(map[record.Type]bool)}
		engine := aggregate.New(src, src, aggregate.WithMaxBuckets(s.limits.MaxBuckets), aggregate.WithLogger(s.logger))
		if buckets, err = engine.Aggregate(ctx, req); err != nil {
			return err
		}
		if scope.SelfOnly() {
			return nil
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{RecordTypes: src.types(), Operation: OperationRead})
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// scopedSource reads samples through the caller's read scope inside one
// transaction.
type scopedSource struct {
	store *Store
	tx    *sql.Tx
	scope identity.Scope
	appID int64
	known bool
	read  map[record.Type]bool
}

// PriorityList reads priority lists through the same transaction.
func (src *scopedSource) PriorityList(ctx context.Context, c record.Category) ([]string, error) {
	return src.store.priorityList(ctx, src.tx, c)
}

func (src *scopedSource) types() []string {
	out := make([]string, 0, len(src.read))
	for t := range src.read {
		out = append(out, string(t))
	}
	return out
}

// Samples returns interval records intersecting [From, To) and instants
// within it. Heart rate records are flattened into their series points.
func (src *scopedSource) Samples(ctx context.Context, q aggregate.Query) ([]aggregate.Sample, error) {
	h, ok := record.Lookup(q.Type)
	if !ok {
		return nil, fmt.Errorf("unknown record type %s", q.Type)
	}
	t := h.Table
	startCol, endCol := h.StartColumn(), h.EndColumn()
	if q.Local {
		startCol, endCol = h.LocalStartColumn(), h.LocalEndColumn()
	}
	var where queryir.Predicate
	if h.Shape == record.ShapeInstant {
		where = queryir.AllOf(queryir.Ge(t+"."+startCol, q.From), queryir.Lt(t+"."+startCol, q.To))
	} else {
		where = queryir.AllOf(queryir.Gt(t+"."+endCol, q.From), queryir.Lt(t+"."+startCol, q.To))
	}
	if q.From == math.MinInt64 {
		where = queryir.Lt(t+"."+startCol, q.To)
	}

	var legs []*queryir.ReadRequest
	if src.scope.SelfAllows(string(q.Type)) && src.known {
		legs = append(legs, recordRead(h, queryir.AllOf(where, queryir.Eq(t+"."+record.ColAppID, src.appID))))
	}
	if src.scope.AnyOwnerAllows(string(q.Type)) {
		legs = append(legs, recordRead(h, where))
	}
	if len(legs) == 0 {
		return []aggregate.Sample{}, nil
	}
	rows, err := src.store.query(ctx, src.tx, legs[0].Union(legs[1:]...).Order(t+"."+startCol, false))
	if err != nil {
		return nil, err
	}
	records, err := src.store.decodeRecords(ctx, src.tx, h, rows)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		src.read[q.Type] = true
	}
	return toSamples(records, q)
}

func toSamples(records []record.Record, q aggregate.Query) ([]aggregate.Sample, error) {
	out := make([]aggregate.Sample, 0, len(records))
	for _, rec := range records {
		meta := rec.Meta()
		origin, modified := meta.PackageName, meta.LastModifiedTime
		switch r := rec.(type) {
		case *record.HeartRateRecord:
			shift := int64(0)
			if q.Local {
				shift = int64(r.StartZoneOffset) * 1000
			}
			for _, p := range r.Samples {
				if at := p.Time + shift; at < q.From || at >= q.To {
					continue
				}
				out = append(out, aggregate.Sample{
					Start: p.Time, End: p.Time,
					StartOffset: r.StartZoneOffset, EndOffset: r.StartZoneOffset,
					Origin: origin, Value: float64(p.BeatsPerMinute), LastModified: modified,
				})
			}
		case *record.SleepSessionRecord:
			out = append(out, aggregate.Sample{
				Start: r.StartTime, End: r.EndTime,
				StartOffset: r.StartZoneOffset, EndOffset: r.EndZoneOffset,
				Origin: origin, Value: float64(r.EndTime - r.StartTime), LastModified: modified,
			})
		case record.Timed:
			v, err := record.Value(rec)
			if err != nil {
				return nil, err
			}
			span := r.Span()
			out = append(out, aggregate.Sample{
				Start: span.StartTime, End: span.EndTime,
				StartOffset: span.StartZoneOffset, EndOffset: span.EndZoneOffset,
				Origin: origin, Value: v, LastModified: modified,
			})
		case record.Pointed:
			v, err := record.Value(rec)
			if err != nil {
				return nil, err
			}
			pt := r.Point()
			out = append(out, aggregate.Sample{
				Start: pt.Time, End: pt.Time,
				StartOffset: pt.ZoneOffset, EndOffset: pt.ZoneOffset,
				Origin: origin, Value: v, LastModified: modified,
			})
		}
	}
	return out, nil
}
