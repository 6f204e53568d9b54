package testutil

import (
	"github.com/google/uuid"

	"github.com/roach88/healthstore/internal/record"
)

// Minute and Hour are millisecond spans for building fixture times.
const (
	Minute int64 = 60 * 1000
	Hour         = 60 * Minute
)

// Steps returns a steps record over [start, end).
func Steps(start, end, count int64) *record.StepsRecord {
	return &record.StepsRecord{
		Interval: record.Interval{StartTime: start, EndTime: end},
		Count:    count,
	}
}

// ActiveCalories returns an active calories record over [start, end).
func ActiveCalories(start, end int64, kcal float64) *record.ActiveCaloriesBurnedRecord {
	return &record.ActiveCaloriesBurnedRecord{
		Interval:   record.Interval{StartTime: start, EndTime: end},
		EnergyKcal: kcal,
	}
}

// TotalCalories returns a total calories record over [start, end).
func TotalCalories(start, end int64, kcal float64) *record.TotalCaloriesBurnedRecord {
	return &record.TotalCaloriesBurnedRecord{
		Interval:   record.Interval{StartTime: start, EndTime: end},
		EnergyKcal: kcal,
	}
}

// Weight returns a weight measurement at t.
func Weight(t int64, kg float64) *record.WeightRecord {
	return &record.WeightRecord{Instant: record.Instant{Time: t}, WeightKg: kg}
}

// LeanBodyMass returns a lean body mass measurement at t.
func LeanBodyMass(t int64, kg float64) *record.LeanBodyMassRecord {
	return &record.LeanBodyMassRecord{Instant: record.Instant{Time: t}, MassKg: kg}
}

// HeartRate returns a heart rate series over [start, end) with one sample
// per bpm value, spaced evenly from start.
func HeartRate(start, end int64, bpm ...int64) *record.HeartRateRecord {
	r := &record.HeartRateRecord{Interval: record.Interval{StartTime: start, EndTime: end}}
	step := (end - start) / int64(max(len(bpm), 1))
	for i, v := range bpm {
		r.Samples = append(r.Samples, record.HeartRateSample{Time: start + int64(i)*step, BeatsPerMinute: v})
	}
	return r
}

// SleepSession returns a sleep session over [start, end) with the given
// stages.
func SleepSession(start, end int64, stages ...record.SleepStage) *record.SleepSessionRecord {
	return &record.SleepSessionRecord{
		Interval: record.Interval{StartTime: start, EndTime: end},
		Stages:   stages,
	}
}

// WithUUID sets the record's uuid and returns it.
func WithUUID[R record.Record](rec R, id uuid.UUID) R {
	rec.Meta().UUID = id
	return rec
}

// WithVersion sets the record's client id and version and returns it.
func WithVersion[R record.Record](rec R, clientID string, version int64) R {
	m := rec.Meta()
	m.ClientRecordID = clientID
	m.ClientRecordVersion = version
	return rec
}

// Records converts typed fixtures to a record slice.
func Records[R record.Record](recs ...R) []record.Record {
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}
