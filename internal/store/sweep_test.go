package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/testutil"
)

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClockMillis(t0)
	s := createTestStore(t, WithClock(clock.Now))

	mustUpsert(t, s, callerA,
		testutil.Steps(t0-2*testutil.Hour, t0-testutil.Hour, 10),
		testutil.HeartRate(t0-2*testutil.Hour, t0-testutil.Hour, 70, 75),
		testutil.Weight(t0-testutil.Hour, 70),
	)
	clock.Advance(time.Hour)
	mustUpsert(t, s, callerB,
		testutil.Steps(t0-testutil.Hour, t0+testutil.Hour, 20),
		testutil.Weight(t0+testutil.Hour, 71),
	)

	res, err := s.DeleteOlderThan(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, map[record.Type]int64{
		record.TypeSteps:     1,
		record.TypeHeartRate: 1,
		record.TypeWeight:    1,
	}, res.Records)
	assert.Equal(t, int64(3), res.Total())
	assert.Zero(t, res.AccessLogs, "access logs are stamped at or after the cutoff")

	assert.Equal(t, 1, countRows(t, s, "steps_record_table"), "a record ending after the cutoff survives")
	assert.Equal(t, 0, countRows(t, s, record.HeartRateSeriesTable))

	res, err = s.DeleteOlderThan(ctx, t0+1)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, int64(1), res.AccessLogs)

	logs, err := s.AccessLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, appB, logs[0].PackageName)
}
