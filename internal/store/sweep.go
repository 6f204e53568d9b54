package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// SweepResult counts the rows an auto-delete sweep removed.
type SweepResult struct {
	Records    map[record.Type]int64 `json:"records"`
	AccessLogs int64                 `json:"access_logs"`
}

// Total is the number of records removed across all types.
func (r SweepResult) Total() int64 {
	var n int64
	for _, c := range r.Records {
		n += c
	}
	return n
}

// DeleteOlderThan removes every record whose end time (or instant time) is
// before cutoff, regardless of owner, and every access log entry older
// than cutoff. Child rows go with their parents.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff int64) (res SweepResult, err error) {
	defer s.observe("sweep", time.Now(), &err)

	res = SweepResult{Records: make(map[record.Type]int64)}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range record.Types() {
			h := record.MustLookup(t)
			n, err := s.delete(ctx, tx, &queryir.DeleteRequest{
				Table: h.Table,
				Where: queryir.Lt(h.EndColumn(), cutoff),
			})
			if err != nil {
				return err
			}
			if n > 0 {
				res.Records[t] = n
			}
		}
		n, err := s.delete(ctx, tx, &queryir.DeleteRequest{
			Table: schema.AccessLogsTable,
			Where: queryir.Lt(schema.LogAccessTime, cutoff),
		})
		res.AccessLogs = n
		return err
	})
	if err != nil {
		return SweepResult{}, err
	}
	s.metrics.AddRows("sweep", int(res.Total()))
	s.logger.Info("auto-delete sweep", "cutoff", cutoff, "records", res.Total(), "access_logs", res.AccessLogs)
	return res, nil
}
