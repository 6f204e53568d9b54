package record

import (
	"fmt"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/ir"
	"github.com/roach88/healthstore/internal/queryir"
)

// Type-specific columns.
const (
	ColCount              = "count"
	ColEnergy             = "energy"
	ColTitle              = "title"
	ColNotes              = "notes"
	ColWeight             = "weight"
	ColHeight             = "height"
	ColMass               = "mass"
	ColBasalMetabolicRate = "basal_metabolic_rate"

	ColStageStartTime = "stage_start_time"
	ColStageEndTime   = "stage_end_time"
	ColStageType      = "stage_type"
	ColBeatsPerMinute = "beats_per_minute"
	ColEpochMillis    = "epoch_millis"
)

// Child table names.
const (
	SleepStagesTable     = "sleep_stages_table"
	HeartRateSeriesTable = "heart_rate_record_series_table"
)

func init() {
	register(Helper{
		Type:        TypeSteps,
		Category:    CategoryActivity,
		Table:       "steps_record_table",
		Shape:       ShapeInterval,
		ValueColumn: ColCount,
		columns:     []queryir.ColumnDef{{Name: ColCount, Type: "INTEGER", NotNull: true}},
		newRecord:   func() Record { return &StepsRecord{} },
		populate: func(rec Record, v map[string]any) {
			v[ColCount] = rec.(*StepsRecord).Count
		},
		decode: func(row Row, rec Record) (err error) {
			rec.(*StepsRecord).Count, err = row.Int64(ColCount)
			return err
		},
		validate: func(rec Record) error {
			if c := rec.(*StepsRecord).Count; c < 1 || c > 1000000 {
				return errs.ValidationField(ColCount, "step count %d out of range [1, 1000000]", c)
			}
			return nil
		},
		dedupe: func(rec Record) ir.Object {
			return ir.Object{ColCount: ir.Int(rec.(*StepsRecord).Count)}
		},
	})

	register(energyHelper(TypeActiveCalories, "active_calories_burned_record_table",
		func() Record { return &ActiveCaloriesBurnedRecord{} },
		func(rec Record) *float64 { return &rec.(*ActiveCaloriesBurnedRecord).EnergyKcal }))

	register(energyHelper(TypeTotalCalories, "total_calories_burned_record_table",
		func() Record { return &TotalCaloriesBurnedRecord{} },
		func(rec Record) *float64 { return &rec.(*TotalCaloriesBurnedRecord).EnergyKcal }))

	register(Helper{
		Type:     TypeSleepSession,
		Category: CategorySleep,
		Table:    "sleep_session_record_table",
		Shape:    ShapeInterval,
		columns: []queryir.ColumnDef{
			{Name: ColTitle, Type: "TEXT"},
			{Name: ColNotes, Type: "TEXT"},
		},
		children: []Child{{
			Table: childTable("sleep_session_record_table", SleepStagesTable,
				queryir.ColumnDef{Name: ColStageStartTime, Type: "INTEGER", NotNull: true},
				queryir.ColumnDef{Name: ColStageEndTime, Type: "INTEGER", NotNull: true},
				queryir.ColumnDef{Name: ColStageType, Type: "INTEGER", NotNull: true},
			),
			OrderColumn: ColStageStartTime,
			rows: func(rec Record) []map[string]any {
				stages := rec.(*SleepSessionRecord).Stages
				out := make([]map[string]any, 0, len(stages))
				for _, s := range stages {
					out = append(out, map[string]any{
						ColStageStartTime: s.StartTime,
						ColStageEndTime:   s.EndTime,
						ColStageType:      int64(s.Stage),
					})
				}
				return out
			},
			attach: func(rec Record, rows []Row) error {
				r := rec.(*SleepSessionRecord)
				r.Stages = make([]SleepStage, 0, len(rows))
				for _, row := range rows {
					var s SleepStage
					var stage int64
					if err := decodeInts(row, map[string]*int64{
						ColStageStartTime: &s.StartTime,
						ColStageEndTime:   &s.EndTime,
						ColStageType:      &stage,
					}); err != nil {
						return err
					}
					s.Stage = int(stage)
					r.Stages = append(r.Stages, s)
				}
				return nil
			},
		}},
		newRecord: func() Record { return &SleepSessionRecord{} },
		populate: func(rec Record, v map[string]any) {
			r := rec.(*SleepSessionRecord)
			v[ColTitle] = nullString(r.Title)
			v[ColNotes] = nullString(r.Notes)
		},
		decode: func(row Row, rec Record) error {
			r := rec.(*SleepSessionRecord)
			r.Title = row.String(ColTitle)
			r.Notes = row.String(ColNotes)
			return nil
		},
		validate: func(rec Record) error {
			r := rec.(*SleepSessionRecord)
			for i, s := range r.Stages {
				if s.StartTime >= s.EndTime {
					return errs.ValidationField("stages", "stage %d: start must be before end", i)
				}
				if s.StartTime < r.StartTime || s.EndTime > r.EndTime {
					return errs.ValidationField("stages", "stage %d lies outside the session", i)
				}
				if s.Stage < SleepStageUnknown || s.Stage > SleepStageREM {
					return errs.ValidationField("stages", "stage %d: unknown stage type %d", i, s.Stage)
				}
			}
			return nil
		},
		dedupe: func(rec Record) ir.Object {
			r := rec.(*SleepSessionRecord)
			stages := make(ir.Array, 0, len(r.Stages))
			for _, s := range r.Stages {
				stages = append(stages, ir.Array{ir.Int(s.StartTime), ir.Int(s.EndTime), ir.Int(s.Stage)})
			}
			return ir.Object{ColTitle: ir.OptString(r.Title), "stages": stages}
		},
	})

	register(Helper{
		Type:     TypeHeartRate,
		Category: CategoryVitals,
		Table:    "heart_rate_record_table",
		Shape:    ShapeInterval,
		children: []Child{{
			Table: childTable("heart_rate_record_table", HeartRateSeriesTable,
				queryir.ColumnDef{Name: ColBeatsPerMinute, Type: "INTEGER", NotNull: true},
				queryir.ColumnDef{Name: ColEpochMillis, Type: "INTEGER", NotNull: true},
			),
			OrderColumn: ColEpochMillis,
			rows: func(rec Record) []map[string]any {
				samples := rec.(*HeartRateRecord).Samples
				out := make([]map[string]any, 0, len(samples))
				for _, s := range samples {
					out = append(out, map[string]any{ColBeatsPerMinute: s.BeatsPerMinute, ColEpochMillis: s.Time})
				}
				return out
			},
			attach: func(rec Record, rows []Row) error {
				r := rec.(*HeartRateRecord)
				r.Samples = make([]HeartRateSample, 0, len(rows))
				for _, row := range rows {
					var s HeartRateSample
					if err := decodeInts(row, map[string]*int64{
						ColBeatsPerMinute: &s.BeatsPerMinute,
						ColEpochMillis:    &s.Time,
					}); err != nil {
						return err
					}
					r.Samples = append(r.Samples, s)
				}
				return nil
			},
		}},
		newRecord: func() Record { return &HeartRateRecord{} },
		populate:  func(Record, map[string]any) {},
		decode:    func(Row, Record) error { return nil },
		validate: func(rec Record) error {
			r := rec.(*HeartRateRecord)
			if len(r.Samples) == 0 {
				return errs.ValidationField("samples", "heart rate record needs at least one sample")
			}
			for i, s := range r.Samples {
				if s.BeatsPerMinute < 1 || s.BeatsPerMinute > 300 {
					return errs.ValidationField("samples", "sample %d: %d bpm out of range [1, 300]", i, s.BeatsPerMinute)
				}
				if s.Time < r.StartTime || s.Time > r.EndTime {
					return errs.ValidationField("samples", "sample %d lies outside the record", i)
				}
			}
			return nil
		},
		dedupe: func(rec Record) ir.Object {
			r := rec.(*HeartRateRecord)
			samples := make(ir.Array, 0, len(r.Samples))
			for _, s := range r.Samples {
				samples = append(samples, ir.Array{ir.Int(s.Time), ir.Int(s.BeatsPerMinute)})
			}
			return ir.Object{"samples": samples}
		},
	})

	register(measurementHelper(TypeWeight, "weight_record_table", ColWeight, 0, 1000,
		func() Record { return &WeightRecord{} },
		func(rec Record) *float64 { return &rec.(*WeightRecord).WeightKg }))

	register(measurementHelper(TypeHeight, "height_record_table", ColHeight, 0, 3,
		func() Record { return &HeightRecord{} },
		func(rec Record) *float64 { return &rec.(*HeightRecord).HeightMeters }))

	register(measurementHelper(TypeLeanBodyMass, "lean_body_mass_record_table", ColMass, 0, 1000,
		func() Record { return &LeanBodyMassRecord{} },
		func(rec Record) *float64 { return &rec.(*LeanBodyMassRecord).MassKg }))

	register(measurementHelper(TypeBasalMetabolicRate, "basal_metabolic_rate_record_table", ColBasalMetabolicRate, 0, 10000,
		func() Record { return &BasalMetabolicRateRecord{} },
		func(rec Record) *float64 { return &rec.(*BasalMetabolicRateRecord).KcalPerDay }))
}

// energyHelper covers the interval calorie types, which differ only in
// table and record struct.
func energyHelper(t Type, table string, newRecord func() Record, field func(Record) *float64) Helper {
	return Helper{
		Type:        t,
		Category:    CategoryActivity,
		Table:       table,
		Shape:       ShapeInterval,
		ValueColumn: ColEnergy,
		columns:     []queryir.ColumnDef{{Name: ColEnergy, Type: "REAL", NotNull: true}},
		newRecord:   newRecord,
		populate: func(rec Record, v map[string]any) {
			v[ColEnergy] = *field(rec)
		},
		decode: func(row Row, rec Record) (err error) {
			*field(rec), err = row.Float64(ColEnergy)
			return err
		},
		validate: func(rec Record) error {
			if e := *field(rec); e < 0 || e > 1000000 {
				return errs.ValidationField(ColEnergy, "energy %g kcal out of range [0, 1000000]", e)
			}
			return nil
		},
		dedupe: func(rec Record) ir.Object {
			return ir.Object{ColEnergy: ir.Float(*field(rec))}
		},
	}
}

// measurementHelper covers the instant body measurement types.
func measurementHelper(t Type, table, column string, lo, hi float64, newRecord func() Record, field func(Record) *float64) Helper {
	return Helper{
		Type:        t,
		Category:    CategoryBodyMeasurements,
		Table:       table,
		Shape:       ShapeInstant,
		ValueColumn: column,
		columns:     []queryir.ColumnDef{{Name: column, Type: "REAL", NotNull: true}},
		newRecord:   newRecord,
		populate: func(rec Record, v map[string]any) {
			v[column] = *field(rec)
		},
		decode: func(row Row, rec Record) (err error) {
			*field(rec), err = row.Float64(column)
			return err
		},
		validate: func(rec Record) error {
			if x := *field(rec); x <= lo || x > hi {
				return errs.ValidationField(column, "%s %g out of range (%g, %g]", column, x, lo, hi)
			}
			return nil
		},
		dedupe: func(rec Record) ir.Object {
			return ir.Object{column: ir.Float(*field(rec))}
		},
	}
}

// Value returns the aggregated numeric value of a record of a type with a
// ValueColumn.
func Value(rec Record) (float64, error) {
	switch r := rec.(type) {
	case *StepsRecord:
		return float64(r.Count), nil
	case *ActiveCaloriesBurnedRecord:
		return r.EnergyKcal, nil
	case *TotalCaloriesBurnedRecord:
		return r.EnergyKcal, nil
	case *WeightRecord:
		return r.WeightKg, nil
	case *HeightRecord:
		return r.HeightMeters, nil
	case *LeanBodyMassRecord:
		return r.MassKg, nil
	case *BasalMetabolicRateRecord:
		return r.KcalPerDay, nil
	default:
		return 0, fmt.Errorf("record type %s has no scalar value", rec.Type())
	}
}
