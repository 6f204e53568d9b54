package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/record"
)

type fakeSource struct {
	samples map[record.Type][]Sample
	queries []Query
	err     error
}

func (f *fakeSource) Samples(_ context.Context, q Query) ([]Sample, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.samples[q.Type], nil
}

type fakePriorities map[record.Category][]string

func (f fakePriorities) PriorityList(_ context.Context, c record.Category) ([]string, error) {
	return f[c], nil
}

const (
	day = int64(24 * time.Hour / time.Millisecond)
	t0  = int64(1_700_000_000_000)
)

func aggregateOne(t *testing.T, e *Engine, req Request) Result {
	t.Helper()
	buckets, err := e.Aggregate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Len(t, req.Types, 1)
	return buckets[0].Results[req.Types[0]]
}

func steps(start, end int64, origin string, count float64) Sample {
	return Sample{Start: start, End: end, Origin: origin, Value: count}
}

func TestStepsExampleSumsAppsWithoutPriorityList(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeSteps: {
			steps(t0-day, t0-day+1000, "com.a", 100),
			steps(t0-day, t0-day+1000, "com.b", 50),
		},
	}}
	e := New(src, fakePriorities{})
	req := Request{Types: []Type{StepsCountTotal}, Start: t0 - day, End: t0}

	res := aggregateOne(t, e, req)
	require.NotNil(t, res.Value)
	assert.Equal(t, 150.0, *res.Value)
	assert.Equal(t, []string{"com.a", "com.b"}, res.Origins)

	req.Origins = []string{"com.b"}
	res = aggregateOne(t, e, req)
	require.NotNil(t, res.Value)
	assert.Equal(t, 50.0, *res.Value)
	assert.Equal(t, []string{"com.b"}, res.Origins)
}

func TestOverlapResolvedByPriority(t *testing.T) {
	samples := map[record.Type][]Sample{
		record.TypeSteps: {
			steps(0, 1000, "com.b", 50),
			steps(0, 1000, "com.a", 100),
		},
	}
	e := New(&fakeSource{samples: samples}, fakePriorities{record.CategoryActivity: {"com.a", "com.b"}})
	res := aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 1000})
	require.NotNil(t, res.Value)
	assert.Equal(t, 100.0, *res.Value)
	assert.Equal(t, []string{"com.a"}, res.Origins)
}

func TestOverlapWithinWinningAppCreditsOneRecord(t *testing.T) {
	older := steps(0, 1000, "com.a", 100)
	older.LastModified = 1
	newer := steps(0, 1000, "com.a", 60)
	newer.LastModified = 2
	e := New(&fakeSource{samples: map[record.Type][]Sample{
		record.TypeSteps: {older, newer, steps(0, 1000, "com.b", 500)},
	}}, fakePriorities{record.CategoryActivity: {"com.a", "com.b"}})
	res := aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 1000})
	require.NotNil(t, res.Value)
	assert.Equal(t, 60.0, *res.Value, "most recently modified record of the winning app")
	assert.Equal(t, []string{"com.a"}, res.Origins)

	shifted := steps(500, 1500, "com.a", 60)
	shifted.LastModified = 2
	e = New(&fakeSource{samples: map[record.Type][]Sample{
		record.TypeSteps: {older, shifted},
	}}, fakePriorities{record.CategoryActivity: {"com.a"}})
	res = aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 2000})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 110.0, *res.Value, 1e-9)
}

func TestPartialOverlapCountsNonOverlappingPortions(t *testing.T) {
	samples := map[record.Type][]Sample{
		record.TypeSteps: {
			steps(0, 1000, "com.a", 100),
			steps(500, 1500, "com.b", 50),
		},
	}
	e := New(&fakeSource{samples: samples}, fakePriorities{record.CategoryActivity: {"com.a", "com.b"}})
	res := aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 2000})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 125.0, *res.Value, 1e-9)
}

func TestAdjacentIntervalsDoNotOverlap(t *testing.T) {
	samples := map[record.Type][]Sample{
		record.TypeSteps: {
			steps(0, 1000, "com.a", 100),
			steps(1000, 2000, "com.b", 50),
		},
	}
	e := New(&fakeSource{samples: samples}, fakePriorities{record.CategoryActivity: {"com.a", "com.b"}})
	res := aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 2000})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 150.0, *res.Value, 1e-9)
}

func TestPriorityListMembershipGatesParticipation(t *testing.T) {
	samples := map[record.Type][]Sample{
		record.TypeSteps: {
			steps(0, 1000, "com.a", 100),
			steps(2000, 3000, "com.b", 50),
		},
	}
	e := New(&fakeSource{samples: samples}, fakePriorities{record.CategoryActivity: {"com.a"}})
	res := aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 5000})
	require.NotNil(t, res.Value)
	assert.Equal(t, 100.0, *res.Value)

	res = aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 0, End: 5000, Origins: []string{"com.b"}})
	assert.Nil(t, res.Value)
	assert.Nil(t, res.ZoneOffset)
	assert.Empty(t, res.Origins)
}

func TestProration(t *testing.T) {
	samples := map[record.Type][]Sample{
		record.TypeActiveCalories: {{Start: 0, End: 4000, Origin: "com.a", Value: 40}},
	}
	e := New(&fakeSource{samples: samples}, nil)
	res := aggregateOne(t, e, Request{Types: []Type{ActiveCaloriesTotal}, Start: 1000, End: 2000})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 10.0, *res.Value, 1e-9)
}

func TestBasalDefaultProfile(t *testing.T) {
	e := New(&fakeSource{}, nil)
	res := aggregateOne(t, e, Request{Types: []Type{BasalCaloriesTotal}, Start: t0, End: t0 + day})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 1534.5, *res.Value, 1e-6)
	assert.InDelta(t, DefaultBasalKcalPerDay, *res.Value, 1e-6)
	assert.Empty(t, res.Origins)
	require.NotNil(t, res.ZoneOffset, "a value without records still reports an offset")
	assert.Equal(t, int32(0), *res.ZoneOffset)

	res = aggregateOne(t, e, Request{Types: []Type{TotalCaloriesBurnedTotal}, Start: t0, End: t0 + day, ZoneOffset: -18000})
	require.NotNil(t, res.Value)
	assert.InDelta(t, DefaultBasalKcalPerDay, *res.Value, 1e-6)
	require.NotNil(t, res.ZoneOffset)
	assert.Equal(t, int32(-18000), *res.ZoneOffset)
}

func TestBasalFromLeanBodyMassBeforeWindow(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeLeanBodyMass: {{Start: t0 - 1000, End: t0 - 1000, StartOffset: 3600, EndOffset: 3600, Origin: "com.scale", Value: 50}},
	}}
	e := New(src, nil)
	res := aggregateOne(t, e, Request{Types: []Type{BasalCaloriesTotal}, Start: t0, End: t0 + day})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 370+21.6*50, *res.Value, 1e-6)
	assert.Equal(t, []string{"com.scale"}, res.Origins)
	require.NotNil(t, res.ZoneOffset)
	assert.Equal(t, int32(3600), *res.ZoneOffset)
}

func TestBasalSwitchesRateMidWindow(t *testing.T) {
	half := t0 + day/2
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeBasalMetabolicRate: {{Start: half, End: half, Origin: "com.a", Value: 2000}},
		record.TypeWeight:             {{Start: t0 - day, End: t0 - day, Origin: "com.a", Value: 80}},
	}}
	e := New(src, nil)
	res := aggregateOne(t, e, Request{Types: []Type{BasalCaloriesTotal}, Start: t0, End: t0 + day})
	require.NotNil(t, res.Value)
	// First half from weight with default height, second half explicit.
	want := mifflinStJeor(80, defaultHeightCm)/2 + 2000.0/2
	assert.InDelta(t, want, *res.Value, 1e-6)
}

func TestBasalQueriesHistory(t *testing.T) {
	src := &fakeSource{}
	e := New(src, nil)
	aggregateOne(t, e, Request{Types: []Type{BasalCaloriesTotal}, Start: t0, End: t0 + day})
	require.NotEmpty(t, src.queries)
	for _, q := range src.queries {
		assert.Less(t, q.From, t0)
		assert.Equal(t, t0+day, q.To)
	}
}

func TestTotalCaloriesFillsUncoveredRemainder(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeTotalCalories:  {{Start: t0, End: t0 + day/2, Origin: "com.a", Value: 1000}},
		record.TypeActiveCalories: {{Start: t0 + day/4, End: t0 + 3*day/4, Origin: "com.b", Value: 200}},
	}}
	e := New(src, nil)
	res := aggregateOne(t, e, Request{Types: []Type{TotalCaloriesBurnedTotal}, Start: t0, End: t0 + day})
	require.NotNil(t, res.Value)
	// Active is prorated to the half not covered by the total record.
	assert.InDelta(t, 1000+100+DefaultBasalKcalPerDay/2, *res.Value, 1e-6)
	assert.Equal(t, []string{"com.a", "com.b"}, res.Origins)
}

func TestInstantStatistics(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeWeight: {
			{Start: 100, End: 100, Origin: "com.a", Value: 70},
			{Start: 200, End: 200, Origin: "com.a", Value: 72},
			{Start: 300, End: 300, Origin: "com.b", Value: 74},
			{Start: 5000, End: 5000, Origin: "com.b", Value: 90},
		},
	}}
	e := New(src, nil)
	req := Request{Types: []Type{WeightAvg, WeightMin, WeightMax}, Start: 0, End: 1000}
	buckets, err := e.Aggregate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	r := buckets[0].Results
	assert.InDelta(t, 72.0, *r[WeightAvg].Value, 1e-9)
	assert.Equal(t, 70.0, *r[WeightMin].Value)
	assert.Equal(t, 74.0, *r[WeightMax].Value)
}

func TestCounts(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeHeartRate: {
			{Start: 10, End: 10, Origin: "com.a", Value: 60},
			{Start: 20, End: 20, Origin: "com.a", Value: 70},
			{Start: 30, End: 30, Origin: "com.a", Value: 80},
		},
		record.TypeSteps: {steps(0, 50, "com.a", 10), steps(60, 90, "com.a", 10)},
	}}
	e := New(src, nil)
	buckets, err := e.Aggregate(context.Background(), Request{
		Types: []Type{HeartRateMeasurementsCount, HeartRateBPMAvg, StepsRecordCount},
		Start: 0, End: 100,
	})
	require.NoError(t, err)
	r := buckets[0].Results
	assert.Equal(t, 3.0, *r[HeartRateMeasurementsCount].Value)
	assert.Equal(t, 70.0, *r[HeartRateBPMAvg].Value)
	assert.Equal(t, 2.0, *r[StepsRecordCount].Value)
}

func TestSleepDuration(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeSleepSession: {
			{Start: 0, End: 8000, Origin: "com.a", Value: 8000},
			{Start: 4000, End: 10000, Origin: "com.b", Value: 6000},
		},
	}}
	e := New(src, fakePriorities{record.CategorySleep: {"com.b", "com.a"}})
	res := aggregateOne(t, e, Request{Types: []Type{SleepDurationTotal}, Start: 0, End: 20000})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 10000.0, *res.Value, 1e-9)
}

func TestLocalWindowShiftsEachSampleByItsOwnOffset(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeSteps: {
			// Local 01:00 in a +1h zone.
			{Start: 0, End: 1000, StartOffset: 3600, EndOffset: 3600, Origin: "com.a", Value: 10},
			// Local 00:00 in a UTC zone.
			{Start: 0, End: 1000, Origin: "com.b", Value: 20},
		},
	}}
	e := New(src, nil)
	res := aggregateOne(t, e, Request{Types: []Type{StepsCountTotal}, Start: 3_600_000, End: 3_601_000, Local: true})
	require.NotNil(t, res.Value)
	assert.Equal(t, 10.0, *res.Value)
	require.NotNil(t, res.ZoneOffset)
	assert.Equal(t, int32(3600), *res.ZoneOffset)
	assert.True(t, src.queries[0].Local)
}

func TestGroupByDuration(t *testing.T) {
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeSteps: {steps(0, 1000, "com.a", 10), steps(2000, 3000, "com.a", 30)},
	}}
	e := New(src, nil)
	buckets, err := e.Aggregate(context.Background(), Request{
		Types:   []Type{StepsCountTotal},
		Start:   0,
		End:     2500,
		GroupBy: &Grouping{Duration: time.Second},
	})
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, 10.0, *buckets[0].Results[StepsCountTotal].Value)
	assert.Nil(t, buckets[1].Results[StepsCountTotal].Value, "empty bucket reports no data, not zero")
	assert.Equal(t, int64(2000), buckets[2].Start)
	assert.Equal(t, int64(2500), buckets[2].End)
	assert.InDelta(t, 15.0, *buckets[2].Results[StepsCountTotal].Value, 1e-9)
}

func TestGroupByPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	e := New(&fakeSource{}, nil)
	buckets, err := e.Aggregate(context.Background(), Request{
		Types:   []Type{StepsCountTotal},
		Start:   start,
		End:     end,
		Local:   true,
		GroupBy: &Grouping{Period: Period{Months: 1}},
	})
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), buckets[1].Start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), buckets[1].End)
}

func TestPeriodBucketsClampMonthEnd(t *testing.T) {
	date := func(y int, m time.Month, d int) int64 {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
	}
	tests := []struct {
		name       string
		start, end int64
		period     Period
		want       []span
	}{
		{
			name:   "starting on the 31st",
			start:  date(2023, 1, 31),
			end:    date(2023, 5, 31),
			period: Period{Months: 1},
			want: []span{
				{date(2023, 1, 31), date(2023, 2, 28)},
				{date(2023, 2, 28), date(2023, 3, 31)},
				{date(2023, 3, 31), date(2023, 4, 30)},
				{date(2023, 4, 30), date(2023, 5, 31)},
			},
		},
		{
			name:   "leap february",
			start:  date(2024, 1, 31),
			end:    date(2024, 4, 1),
			period: Period{Months: 1},
			want: []span{
				{date(2024, 1, 31), date(2024, 2, 29)},
				{date(2024, 2, 29), date(2024, 3, 31)},
				{date(2024, 3, 31), date(2024, 4, 1)},
			},
		},
		{
			name:   "leap day yearly",
			start:  date(2024, 2, 29),
			end:    date(2026, 3, 1),
			period: Period{Months: 12},
			want: []span{
				{date(2024, 2, 29), date(2025, 2, 28)},
				{date(2025, 2, 28), date(2026, 2, 28)},
				{date(2026, 2, 28), date(2026, 3, 1)},
			},
		},
		{
			name:   "days added after clamping",
			start:  date(2023, 1, 31),
			end:    date(2023, 3, 10),
			period: Period{Months: 1, Days: 1},
			want: []span{
				{date(2023, 1, 31), date(2023, 3, 1)},
				{date(2023, 3, 1), date(2023, 3, 10)},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := periodBuckets(tt.start, tt.end, tt.period, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupByPeriodFromMonthEnd(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC).UnixMilli()
	feb29 := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC).UnixMilli()
	src := &fakeSource{samples: map[record.Type][]Sample{
		record.TypeSteps: {steps(feb29, feb29+1000, "com.a", 10)},
	}}
	e := New(src, nil)
	buckets, err := e.Aggregate(context.Background(), Request{
		Types:   []Type{StepsCountTotal},
		Start:   start,
		End:     end,
		Local:   true,
		GroupBy: &Grouping{Period: Period{Months: 1}},
	})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, feb29, buckets[0].End)
	assert.Nil(t, buckets[0].Results[StepsCountTotal].Value)
	assert.Equal(t, feb29, buckets[1].Start)
	assert.Equal(t, end, buckets[1].End)
	require.NotNil(t, buckets[1].Results[StepsCountTotal].Value)
	assert.Equal(t, 10.0, *buckets[1].Results[StepsCountTotal].Value)
}

func TestValidation(t *testing.T) {
	e := New(&fakeSource{}, nil, WithMaxBuckets(10))
	tests := []struct {
		name string
		req  Request
	}{
		{"no types", Request{Start: 0, End: 10}},
		{"unknown type", Request{Types: []Type{"NOPE"}, Start: 0, End: 10}},
		{"empty window", Request{Types: []Type{StepsCountTotal}, Start: 10, End: 10}},
		{"zero period", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 10, Local: true, GroupBy: &Grouping{}}},
		{"negative duration", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 10, GroupBy: &Grouping{Duration: -time.Second}}},
		{"sub-millisecond duration", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 10, GroupBy: &Grouping{Duration: time.Microsecond}}},
		{"period needs local", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 10, GroupBy: &Grouping{Period: Period{Days: 1}}}},
		{"both groupings", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 10, Local: true, GroupBy: &Grouping{Duration: time.Millisecond, Period: Period{Days: 1}}}},
		{"too many buckets", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 11, GroupBy: &Grouping{Duration: time.Millisecond}}},
		{"too many periods", Request{Types: []Type{StepsCountTotal}, Start: 0, End: 11 * day, Local: true, GroupBy: &Grouping{Period: Period{Days: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Aggregate(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestExactlyMaxBucketsIsAllowed(t *testing.T) {
	e := New(&fakeSource{}, nil, WithMaxBuckets(10))
	buckets, err := e.Aggregate(context.Background(), Request{
		Types: []Type{StepsCountTotal}, Start: 0, End: 10, GroupBy: &Grouping{Duration: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Len(t, buckets, 10)
}

func TestSourceErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	e := New(&fakeSource{err: boom}, nil)
	_, err := e.Aggregate(context.Background(), Request{Types: []Type{StepsCountTotal}, Start: 0, End: 10})
	assert.ErrorIs(t, err, boom)
}

func TestTypesAreComplete(t *testing.T) {
	assert.Len(t, Types(), 22)
	for _, typ := range Types() {
		rt, ok := typ.RecordType()
		require.True(t, ok)
		_, ok = record.Lookup(rt)
		assert.True(t, ok, "%s reads unknown record type %s", typ, rt)
	}
}

func TestInputs(t *testing.T) {
	assert.Equal(t, []record.Type{record.TypeSteps}, StepsCountTotal.Inputs())
	assert.Equal(t, []record.Type{
		record.TypeBasalMetabolicRate, record.TypeLeanBodyMass, record.TypeWeight, record.TypeHeight,
	}, BasalCaloriesTotal.Inputs())
	total := TotalCaloriesBurnedTotal.Inputs()
	assert.Len(t, total, 6)
	assert.Equal(t, record.TypeTotalCalories, total[0])
	assert.Nil(t, Type("NOPE").Inputs())
}
