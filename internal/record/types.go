package record

import (
	"github.com/google/uuid"
)

// Type is the record-type discriminator.
type Type string

const (
	TypeSteps              Type = "STEPS"
	TypeActiveCalories     Type = "ACTIVE_CALORIES_BURNED"
	TypeTotalCalories      Type = "TOTAL_CALORIES_BURNED"
	TypeSleepSession       Type = "SLEEP_SESSION"
	TypeHeartRate          Type = "HEART_RATE"
	TypeWeight             Type = "WEIGHT"
	TypeHeight             Type = "HEIGHT"
	TypeLeanBodyMass       Type = "LEAN_BODY_MASS"
	TypeBasalMetabolicRate Type = "BASAL_METABOLIC_RATE"
)

// Category groups record types that share a priority list.
type Category string

const (
	CategoryActivity         Category = "ACTIVITY"
	CategorySleep            Category = "SLEEP"
	CategoryBodyMeasurements Category = "BODY_MEASUREMENTS"
	CategoryVitals           Category = "VITALS"
)

// Categories returns every category in a fixed order.
func Categories() []Category {
	return []Category{CategoryActivity, CategorySleep, CategoryBodyMeasurements, CategoryVitals}
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Shape says how a record type places itself on the time axis.
type Shape int

const (
	ShapeInterval Shape = iota
	ShapeInstant
)

// Recording methods.
const (
	RecordingMethodUnknown = iota
	RecordingMethodActivelyRecorded
	RecordingMethodAutomaticallyRecorded
	RecordingMethodManualEntry
)

// Device identifies the device a record was captured on.
type Device struct {
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	Type         int    `json:"type,omitempty" yaml:"type,omitempty"`
}

// Metadata is common to every record type.
type Metadata struct {
	UUID                uuid.UUID `json:"uuid" yaml:"uuid,omitempty"`
	ClientRecordID      string    `json:"client_record_id,omitempty" yaml:"client_record_id,omitempty"`
	ClientRecordVersion int64     `json:"client_record_version,omitempty" yaml:"client_record_version,omitempty"`
	PackageName         string    `json:"package_name" yaml:"package_name,omitempty"`
	Device              Device    `json:"device" yaml:"device,omitempty"`
	LastModifiedTime    int64     `json:"last_modified_time" yaml:"last_modified_time,omitempty"`
	RecordingMethod     int       `json:"recording_method,omitempty" yaml:"recording_method,omitempty"`
}

// Interval places a record on [StartTime, EndTime). Times are epoch millis,
// zone offsets are seconds east of UTC.
type Interval struct {
	StartTime       int64 `json:"start_time" yaml:"start_time"`
	StartZoneOffset int32 `json:"start_zone_offset" yaml:"start_zone_offset"`
	EndTime         int64 `json:"end_time" yaml:"end_time"`
	EndZoneOffset   int32 `json:"end_zone_offset" yaml:"end_zone_offset"`
}

// Instant places a record at a single point in time.
type Instant struct {
	Time       int64 `json:"time" yaml:"time"`
	ZoneOffset int32 `json:"zone_offset" yaml:"zone_offset"`
}

// Record is implemented by every typed record.
type Record interface {
	Type() Type
	Meta() *Metadata
}

// Timed is implemented by interval records.
type Timed interface {
	Record
	Span() *Interval
}

// Pointed is implemented by instant records.
type Pointed interface {
	Record
	Point() *Instant
}

type StepsRecord struct {
	Metadata `yaml:",inline"`
	Interval `yaml:",inline"`
	Count    int64 `json:"count" yaml:"count"`
}

func (r *StepsRecord) Type() Type      { return TypeSteps }
func (r *StepsRecord) Meta() *Metadata { return &r.Metadata }
func (r *StepsRecord) Span() *Interval { return &r.Interval }

type ActiveCaloriesBurnedRecord struct {
	Metadata   `yaml:",inline"`
	Interval   `yaml:",inline"`
	EnergyKcal float64 `json:"energy_kcal" yaml:"energy_kcal"`
}

func (r *ActiveCaloriesBurnedRecord) Type() Type      { return TypeActiveCalories }
func (r *ActiveCaloriesBurnedRecord) Meta() *Metadata { return &r.Metadata }
func (r *ActiveCaloriesBurnedRecord) Span() *Interval { return &r.Interval }

type TotalCaloriesBurnedRecord struct {
	Metadata   `yaml:",inline"`
	Interval   `yaml:",inline"`
	EnergyKcal float64 `json:"energy_kcal" yaml:"energy_kcal"`
}

func (r *TotalCaloriesBurnedRecord) Type() Type      { return TypeTotalCalories }
func (r *TotalCaloriesBurnedRecord) Meta() *Metadata { return &r.Metadata }
func (r *TotalCaloriesBurnedRecord) Span() *Interval { return &r.Interval }

// Sleep stage types.
const (
	SleepStageUnknown = iota
	SleepStageAwake
	SleepStageSleeping
	SleepStageOutOfBed
	SleepStageLight
	SleepStageDeep
	SleepStageREM
)

// SleepStage is one child row of a sleep session.
type SleepStage struct {
	StartTime int64 `json:"start_time" yaml:"start_time"`
	EndTime   int64 `json:"end_time" yaml:"end_time"`
	Stage     int   `json:"stage" yaml:"stage"`
}

type SleepSessionRecord struct {
	Metadata `yaml:",inline"`
	Interval `yaml:",inline"`
	Title    string       `json:"title,omitempty" yaml:"title,omitempty"`
	Notes    string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Stages   []SleepStage `json:"stages,omitempty" yaml:"stages,omitempty"`
}

func (r *SleepSessionRecord) Type() Type      { return TypeSleepSession }
func (r *SleepSessionRecord) Meta() *Metadata { return &r.Metadata }
func (r *SleepSessionRecord) Span() *Interval { return &r.Interval }

// HeartRateSample is one child row of a heart rate series.
type HeartRateSample struct {
	Time           int64 `json:"time" yaml:"time"`
	BeatsPerMinute int64 `json:"beats_per_minute" yaml:"beats_per_minute"`
}

type HeartRateRecord struct {
	Metadata `yaml:",inline"`
	Interval `yaml:",inline"`
	Samples  []HeartRateSample `json:"samples" yaml:"samples"`
}

func (r *HeartRateRecord) Type() Type      { return TypeHeartRate }
func (r *HeartRateRecord) Meta() *Metadata { return &r.Metadata }
func (r *HeartRateRecord) Span() *Interval { return &r.Interval }

type WeightRecord struct {
	Metadata `yaml:",inline"`
	Instant  `yaml:",inline"`
	WeightKg float64 `json:"weight_kg" yaml:"weight_kg"`
}

func (r *WeightRecord) Type() Type      { return TypeWeight }
func (r *WeightRecord) Meta() *Metadata { return &r.Metadata }
func (r *WeightRecord) Point() *Instant { return &r.Instant }

type HeightRecord struct {
	Metadata     `yaml:",inline"`
	Instant      `yaml:",inline"`
	HeightMeters float64 `json:"height_meters" yaml:"height_meters"`
}

func (r *HeightRecord) Type() Type      { return TypeHeight }
func (r *HeightRecord) Meta() *Metadata { return &r.Metadata }
func (r *HeightRecord) Point() *Instant { return &r.Instant }

type LeanBodyMassRecord struct {
	Metadata `yaml:",inline"`
	Instant  `yaml:",inline"`
	MassKg   float64 `json:"mass_kg" yaml:"mass_kg"`
}

func (r *LeanBodyMassRecord) Type() Type      { return TypeLeanBodyMass }
func (r *LeanBodyMassRecord) Meta() *Metadata { return &r.Metadata }
func (r *LeanBodyMassRecord) Point() *Instant { return &r.Instant }

// BasalMetabolicRateRecord stores an explicit basal rate in kcal per day.
type BasalMetabolicRateRecord struct {
	Metadata   `yaml:",inline"`
	Instant    `yaml:",inline"`
	KcalPerDay float64 `json:"kcal_per_day" yaml:"kcal_per_day"`
}

func (r *BasalMetabolicRateRecord) Type() Type      { return TypeBasalMetabolicRate }
func (r *BasalMetabolicRateRecord) Meta() *Metadata { return &r.Metadata }
func (r *BasalMetabolicRateRecord) Point() *Instant { return &r.Instant }
