package aggregate

import (
	"context"
	"time"

	"github.com/roach88/healthstore/internal/record"
)

// Type names one aggregation.
type Type string

const (
	StepsCountTotal            Type = "STEPS_COUNT_TOTAL"
	StepsRecordCount           Type = "STEPS_RECORD_COUNT"
	ActiveCaloriesTotal        Type = "ACTIVE_CALORIES_TOTAL"
	TotalCaloriesBurnedTotal   Type = "TOTAL_CALORIES_BURNED_TOTAL"
	BasalCaloriesTotal         Type = "BASAL_CALORIES_TOTAL"
	SleepDurationTotal         Type = "SLEEP_DURATION_TOTAL"
	WeightAvg                  Type = "WEIGHT_AVG"
	WeightMin                  Type = "WEIGHT_MIN"
	WeightMax                  Type = "WEIGHT_MAX"
	HeightAvg                  Type = "HEIGHT_AVG"
	HeightMin                  Type = "HEIGHT_MIN"
	HeightMax                  Type = "HEIGHT_MAX"
	LeanBodyMassAvg            Type = "LEAN_BODY_MASS_AVG"
	LeanBodyMassMin            Type = "LEAN_BODY_MASS_MIN"
	LeanBodyMassMax            Type = "LEAN_BODY_MASS_MAX"
	BMRAvg                     Type = "BMR_AVG"
	BMRMin                     Type = "BMR_MIN"
	BMRMax                     Type = "BMR_MAX"
	HeartRateBPMAvg            Type = "HEART_RATE_BPM_AVG"
	HeartRateBPMMin            Type = "HEART_RATE_BPM_MIN"
	HeartRateBPMMax            Type = "HEART_RATE_BPM_MAX"
	HeartRateMeasurementsCount Type = "HEART_RATE_MEASUREMENTS_COUNT"
)

type op int

const (
	opSum op = iota
	opRecordCount
	opAvg
	opMin
	opMax
	opSampleCount
	opBasal
	opTotalCalories
)

type definition struct {
	recordType record.Type
	op         op
}

var definitions = map[Type]definition{
	StepsCountTotal:            {record.TypeSteps, opSum},
	StepsRecordCount:           {record.TypeSteps, opRecordCount},
	ActiveCaloriesTotal:        {record.TypeActiveCalories, opSum},
	TotalCaloriesBurnedTotal:   {record.TypeTotalCalories, opTotalCalories},
	BasalCaloriesTotal:         {record.TypeBasalMetabolicRate, opBasal},
	SleepDurationTotal:         {record.TypeSleepSession, opSum},
	WeightAvg:                  {record.TypeWeight, opAvg},
	WeightMin:                  {record.TypeWeight, opMin},
	WeightMax:                  {record.TypeWeight, opMax},
	HeightAvg:                  {record.TypeHeight, opAvg},
	HeightMin:                  {record.TypeHeight, opMin},
	HeightMax:                  {record.TypeHeight, opMax},
	LeanBodyMassAvg:            {record.TypeLeanBodyMass, opAvg},
	LeanBodyMassMin:            {record.TypeLeanBodyMass, opMin},
	LeanBodyMassMax:            {record.TypeLeanBodyMass, opMax},
	BMRAvg:                     {record.TypeBasalMetabolicRate, opAvg},
	BMRMin:                     {record.TypeBasalMetabolicRate, opMin},
	BMRMax:                     {record.TypeBasalMetabolicRate, opMax},
	HeartRateBPMAvg:            {record.TypeHeartRate, opAvg},
	HeartRateBPMMin:            {record.TypeHeartRate, opMin},
	HeartRateBPMMax:            {record.TypeHeartRate, opMax},
	HeartRateMeasurementsCount: {record.TypeHeartRate, opSampleCount},
}

// Types lists every supported aggregation type.
func Types() []Type {
	out := make([]Type, 0, len(definitions))
	for t := range definitions {
		out = append(out, t)
	}
	sortTypes(out)
	return out
}

// RecordType is the record type an aggregation reads directly.
func (t Type) RecordType() (record.Type, bool) {
	d, ok := definitions[t]
	return d.recordType, ok
}

// Inputs lists every record type the aggregation reads, including those
// the basal derivation falls back to.
func (t Type) Inputs() []record.Type {
	d, ok := definitions[t]
	if !ok {
		return nil
	}
	switch d.op {
	case opBasal:
		return append([]record.Type(nil), profileTypes...)
	case opTotalCalories:
		return append([]record.Type{record.TypeTotalCalories, record.TypeActiveCalories}, profileTypes...)
	default:
		return []record.Type{d.recordType}
	}
}

// Sample is one stored observation as the engine sees it. Interval records
// span [Start, End); instants and heart rate points have End == Start.
// Times are UTC millis, offsets seconds east of UTC.
type Sample struct {
	Start, End   int64
	StartOffset  int32
	EndOffset    int32
	Origin       string
	Value        float64
	LastModified int64
}

func (s Sample) instant() bool { return s.End == s.Start }

// Query asks a Source for samples of one record type. On the local axis
// From and To are wall-clock millis compared against each record's own
// shifted times. Interval samples intersecting [From, To) and instants in
// [From, To) are returned.
type Query struct {
	Type     record.Type
	From, To int64
	Local    bool
}

// Source supplies samples. Heart rate records are flattened to one sample
// per series point, carrying the record's start offset. Sleep sessions
// report their duration in millis as Value.
type Source interface {
	Samples(ctx context.Context, q Query) ([]Sample, error)
}

// PriorityProvider supplies the ordered package list of a category. An
// empty list means no priority ordering is configured.
type PriorityProvider interface {
	PriorityList(ctx context.Context, c record.Category) ([]string, error)
}

// Period is a calendar step on the local axis.
type Period struct {
	Months int
	Days   int
}

func (p Period) zero() bool { return p.Months == 0 && p.Days == 0 }

// Grouping splits the window into buckets. Exactly one of Duration and
// Period is set.
type Grouping struct {
	Duration time.Duration
	Period   Period
}

// Request is one aggregation call. Start and End are UTC millis, or
// wall-clock millis when Local is set. A nil GroupBy yields a single bucket
// covering the window.
type Request struct {
	Types   []Type
	Start   int64
	End     int64
	Local   bool
	GroupBy *Grouping

	// Origins restricts contributing apps. Empty means every app.
	Origins []string

	// ZoneOffset, in seconds, is reported for results derived from
	// default values without any contributing record.
	ZoneOffset int32
}

// Result is the value of one aggregation in one bucket. Value is nil when
// no record contributed.
type Result struct {
	Value      *float64 `json:"value"`
	ZoneOffset *int32   `json:"zone_offset"`
	Origins    []string `json:"origins"`
}

// Bucket is one group of the result.
type Bucket struct {
	Start   int64           `json:"start"`
	End     int64           `json:"end"`
	Results map[Type]Result `json:"results"`
}
