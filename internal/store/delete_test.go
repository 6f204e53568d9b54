package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/testutil"
)

func notFoundReason(t *testing.T, err error) string {
	t.Helper()
	var e *errs.Error
	require.True(t, errors.As(err, &e), "expected *errs.Error, got %v", err)
	require.Equal(t, errs.CodeNotFound, e.Code)
	return e.Details["reason"]
}

func TestDeleteRecords_Own(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	res := mustUpsert(t, s, callerA,
		testutil.HeartRate(t0, t0+3000, 80, 90, 100),
		testutil.HeartRate(t0+testutil.Hour, t0+testutil.Hour+1000, 70),
	)

	require.NoError(t, s.DeleteRecords(ctx, callerA, record.TypeHeartRate, []uuid.UUID{res[0].UUID, res[0].UUID}))

	assert.Equal(t, 1, countRows(t, s, "heart_rate_record_table"))
	assert.Equal(t, 1, countRows(t, s, record.HeartRateSeriesTable), "children cascade with the parent")

	logs, err := s.AccessLogs(ctx, 0)
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, OperationDelete, last.Operation)
	assert.Equal(t, []string{"HEART_RATE"}, last.RecordTypes)
}

func TestDeleteRecords_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	own := mustUpsert(t, s, callerA, testutil.Steps(t0, t0+1000, 100))
	other := mustUpsert(t, s, callerB, testutil.Steps(t0, t0+1000, 100))

	tests := []struct {
		name   string
		ids    []uuid.UUID
		reason string
	}{
		{"other app's record", []uuid.UUID{own[0].UUID, other[0].UUID}, "not owned by caller"},
		{"nonexistent record", []uuid.UUID{own[0].UUID, uuid.New()}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.DeleteRecords(ctx, callerA, record.TypeSteps, tt.ids)
			assert.Equal(t, tt.reason, notFoundReason(t, err))
			assert.Equal(t, 2, countRows(t, s, "steps_record_table"), "nothing deleted")
		})
	}
}

func TestDeleteRecords_Rejects(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.DeleteRecords(ctx, callerReader, record.TypeSteps, []uuid.UUID{uuid.New()})
	assert.True(t, errs.IsPermission(err), "got %v", err)

	err = s.DeleteRecords(ctx, callerA, record.TypeSteps, nil)
	assert.True(t, errs.IsValidation(err), "got %v", err)

	err = s.DeleteRecords(ctx, callerA, "BLOOD_GLUCOSE", []uuid.UUID{uuid.New()})
	assert.True(t, errs.IsValidation(err), "got %v", err)
}

func TestDeleteRecordsByFilter(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustUpsert(t, s, callerA,
		testutil.Steps(t0, t0+1000, 1),
		testutil.Steps(t0+testutil.Hour, t0+testutil.Hour+1000, 2),
		testutil.Weight(t0, 70),
	)
	mustUpsert(t, s, callerB, testutil.Steps(t0, t0+1000, 3))

	n, err := s.DeleteRecordsByFilter(ctx, callerA,
		[]record.Type{record.TypeSteps, record.TypeWeight},
		&TimeRange{Start: t0, End: t0 + testutil.Hour})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	page, err := s.ReadRecords(ctx, callerReader, ReadRecordsRequest{Type: record.TypeSteps})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, stepCounts(page.Records), "other app's rows and rows outside the range survive")

	logs, err := s.AccessLogs(ctx, 0)
	require.NoError(t, err)
	var deletes []AccessLog
	for _, l := range logs {
		if l.Operation == OperationDelete {
			deletes = append(deletes, l)
		}
	}
	require.Len(t, deletes, 1)
	assert.Equal(t, []string{"STEPS", "WEIGHT"}, deletes[0].RecordTypes)
}

func TestDeleteRecordsByFilter_UnknownAppDeletesNothing(t *testing.T) {
	s := createTestStore(t)
	mustUpsert(t, s, callerA, testutil.Steps(t0, t0+1000, 1))

	n, err := s.DeleteRecordsByFilter(context.Background(), callerB, []record.Type{record.TypeSteps}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, countRows(t, s, "steps_record_table"))
}
