package record

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/schema"
)

func TestRegistryIsTotal(t *testing.T) {
	all := []Type{
		TypeSteps, TypeActiveCalories, TypeTotalCalories, TypeSleepSession, TypeHeartRate,
		TypeWeight, TypeHeight, TypeLeanBodyMass, TypeBasalMetabolicRate,
	}
	assert.Len(t, Types(), len(all))
	for _, typ := range all {
		h, ok := Lookup(typ)
		require.True(t, ok, "missing helper for %s", typ)
		assert.Equal(t, typ, h.Type)
		assert.Equal(t, typ, h.New().Type())
		assert.True(t, ValidCategory(h.Category))
	}
}

func TestTypesAreSorted(t *testing.T) {
	types := Types()
	for i := 1; i < len(types); i++ {
		assert.Less(t, string(types[i-1]), string(types[i]))
	}
}

func TestTypesIn(t *testing.T) {
	assert.Equal(t, []Type{TypeActiveCalories, TypeSteps, TypeTotalCalories}, TypesIn(CategoryActivity))
	assert.Equal(t, []Type{TypeHeartRate}, TypesIn(CategoryVitals))
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() { register(MustLookup(TypeSteps)) })
	assert.Panics(t, func() { MustLookup("NOPE") })
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("STEPS")
	require.NoError(t, err)
	assert.Equal(t, TypeSteps, typ)

	_, err = ParseType("GLUCOSE")
	assert.True(t, errs.IsValidation(err))
}

func TestCreateTableRequestsAreValid(t *testing.T) {
	for _, typ := range Types() {
		h := MustLookup(typ)
		req := h.CreateTableRequest()
		assert.True(t, queryir.Validate(req).Valid(), "%s: %v", typ, queryir.Validate(req).Problems)

		_, ok := req.Column(h.LocalStartColumn())
		assert.True(t, ok, "%s lacks %s", typ, h.LocalStartColumn())

		_, ok = h.BaseTableRequest().Column(h.LocalStartColumn())
		assert.False(t, ok, "%s base layout should not carry generated columns", typ)
	}
}

func TestChildTables(t *testing.T) {
	req := MustLookup(TypeHeartRate).CreateTableRequest()
	require.Len(t, req.Children, 1)
	child := req.Children[0]
	assert.Equal(t, HeartRateSeriesTable, child.Table)
	require.Len(t, child.ForeignKeys, 1)
	assert.Equal(t, "CASCADE", child.ForeignKeys[0].OnDelete)
	assert.Equal(t, "heart_rate_record_table", child.ForeignKeys[0].RefTable)
}

func TestLocalTimeExpressions(t *testing.T) {
	cols := MustLookup(TypeWeight).LocalTimeColumns()
	require.Len(t, cols, 1)
	assert.Equal(t, "time + zone_offset * 1000", cols[0].Generated)

	cols = MustLookup(TypeSteps).LocalTimeColumns()
	require.Len(t, cols, 2)
	assert.Equal(t, "start_time + start_zone_offset * 1000", cols[0].Generated)
	assert.Equal(t, "end_time + end_zone_offset * 1000", cols[1].Generated)
}

func stepsRecord(count int64) *StepsRecord {
	return &StepsRecord{
		Metadata: Metadata{UUID: uuid.New(), PackageName: "com.example.fit", ClientRecordVersion: 1},
		Interval: Interval{StartTime: 1000, EndTime: 2000, StartZoneOffset: 3600, EndZoneOffset: 3600},
		Count:    count,
	}
}

func TestValuesAndDecode(t *testing.T) {
	h := MustLookup(TypeSteps)
	rec := stepsRecord(120)
	values := h.Values(rec)
	assert.Equal(t, int64(120), values[ColCount])
	assert.Nil(t, values[ColClientRecordID])
	assert.Equal(t, int64(3600), values[ColStartZoneOffset])

	row := Row{}
	for k, v := range values {
		row[k] = v
	}
	row[schema.PackageName] = "com.example.fit"
	decoded, err := h.Decode(row)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeRejectsBadUUID(t *testing.T) {
	_, err := MustLookup(TypeSteps).Decode(Row{ColUUID: []byte{1, 2, 3}})
	assert.Error(t, err)
}

func TestChildUpsertsAndAttach(t *testing.T) {
	h := MustLookup(TypeSleepSession)
	rec := &SleepSessionRecord{
		Interval: Interval{StartTime: 0, EndTime: 100},
		Stages: []SleepStage{
			{StartTime: 0, EndTime: 40, Stage: SleepStageLight},
			{StartTime: 40, EndTime: 100, Stage: SleepStageDeep},
		},
	}
	ups := h.ChildUpserts(rec)
	require.Len(t, ups, 2)
	assert.Equal(t, schema.ParentKey, ups[0].ParentColumn)
	assert.Equal(t, SleepStagesTable, ups[0].Request.Table)

	rows := make([]Row, 0, len(ups))
	for _, u := range ups {
		rows = append(rows, Row(u.Request.Values))
	}
	decoded := &SleepSessionRecord{}
	require.NoError(t, h.AttachChildren(decoded, SleepStagesTable, rows))
	assert.Equal(t, rec.Stages, decoded.Stages)

	assert.Error(t, h.AttachChildren(decoded, "other_table", rows))
	assert.Equal(t, []queryir.ChildTable{{Table: SleepStagesTable, ParentColumn: schema.ParentKey}}, h.ReplaceChildren())
}

func TestValidate(t *testing.T) {
	h := MustLookup(TypeSteps)
	assert.NoError(t, h.Validate(stepsRecord(10)))

	bad := stepsRecord(0)
	assert.True(t, errs.IsValidation(h.Validate(bad)))

	inverted := stepsRecord(10)
	inverted.EndTime = inverted.StartTime
	assert.True(t, errs.IsValidation(h.Validate(inverted)))

	offset := stepsRecord(10)
	offset.StartZoneOffset = 19 * 3600
	assert.True(t, errs.IsValidation(h.Validate(offset)))

	hr := MustLookup(TypeHeartRate)
	assert.True(t, errs.IsValidation(hr.Validate(&HeartRateRecord{Interval: Interval{StartTime: 0, EndTime: 10}})))
	assert.True(t, errs.IsValidation(hr.Validate(&HeartRateRecord{
		Interval: Interval{StartTime: 0, EndTime: 10},
		Samples:  []HeartRateSample{{Time: 20, BeatsPerMinute: 70}},
	})))

	assert.True(t, errs.IsValidation(h.Validate(&WeightRecord{WeightKg: 70})))
	assert.True(t, errs.IsValidation(MustLookup(TypeWeight).Validate(&WeightRecord{WeightKg: -1})))
}

func TestDedupeHashIgnoresIdentity(t *testing.T) {
	h := MustLookup(TypeSteps)
	a := stepsRecord(50)
	b := stepsRecord(50)
	b.ClientRecordID = "client-1"
	b.ClientRecordVersion = 9

	ha, err := h.DedupeHash(a)
	require.NoError(t, err)
	hb, err := h.DedupeHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	c := stepsRecord(51)
	hc, err := h.DedupeHash(c)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)

	d := stepsRecord(50)
	d.PackageName = "com.other"
	hd, err := h.DedupeHash(d)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hd)
}

func TestValue(t *testing.T) {
	v, err := Value(&WeightRecord{WeightKg: 71.5})
	require.NoError(t, err)
	assert.Equal(t, 71.5, v)

	_, err = Value(&SleepSessionRecord{})
	assert.Error(t, err)
}

func TestEnsureUUID(t *testing.T) {
	rec := &StepsRecord{}
	EnsureUUID(rec)
	assert.NotEqual(t, uuid.Nil, rec.UUID)
	id := rec.UUID
	EnsureUUID(rec)
	assert.Equal(t, id, rec.UUID)
}
