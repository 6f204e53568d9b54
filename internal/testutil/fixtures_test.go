package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/record"
)

func TestFixtures_ValidateAgainstRegistry(t *testing.T) {
	recs := []record.Record{
		Steps(0, Hour, 100),
		ActiveCalories(0, Hour, 50),
		TotalCalories(0, Hour, 120),
		Weight(0, 70),
		LeanBodyMass(0, 55),
		HeartRate(0, Minute, 60, 70, 80),
		SleepSession(0, 8*Hour, record.SleepStage{StartTime: 0, EndTime: Hour, Stage: record.SleepStageLight}),
	}
	for _, rec := range recs {
		h, ok := record.Lookup(rec.Type())
		require.True(t, ok)
		assert.NoError(t, h.Validate(rec), "%s", rec.Type())
	}
}

func TestHeartRate_SpacesSamples(t *testing.T) {
	hr := HeartRate(0, 3000, 60, 70, 80)
	require.Len(t, hr.Samples, 3)
	assert.Equal(t, []int64{0, 1000, 2000}, []int64{hr.Samples[0].Time, hr.Samples[1].Time, hr.Samples[2].Time})
}

func TestWithUUIDAndVersion(t *testing.T) {
	id := uuid.New()
	rec := WithVersion(WithUUID(Steps(0, Hour, 1), id), "client-1", 3)
	assert.Equal(t, id, rec.UUID)
	assert.Equal(t, "client-1", rec.ClientRecordID)
	assert.Equal(t, int64(3), rec.ClientRecordVersion)
	assert.Len(t, Records(rec, rec), 2)
}
