package record

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/ir"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/schema"
)

// Columns shared by every record table.
const (
	ColUUID                = schema.UUID
	ColClientRecordID      = "client_record_id"
	ColClientRecordVersion = "client_record_version"
	ColAppID               = schema.AppID
	ColDeviceID            = "device_id"
	ColLastModifiedTime    = schema.LastModifiedTime
	ColRecordingMethod     = "recording_method"
	ColDedupeHash          = "dedupe_hash"

	ColStartTime       = "start_time"
	ColStartZoneOffset = "start_zone_offset"
	ColEndTime         = "end_time"
	ColEndZoneOffset   = "end_zone_offset"
	ColLocalStartTime  = "local_date_time_start_time"
	ColLocalEndTime    = "local_date_time_end_time"

	ColTime       = "time"
	ColZoneOffset = "zone_offset"
	ColLocalTime  = "local_date_time"
)

// maxZoneOffsetSeconds bounds zone offsets to +-18h.
const maxZoneOffsetSeconds = 18 * 60 * 60

// Child describes a child table hanging off a record table.
type Child struct {
	Table       *queryir.CreateTableRequest
	OrderColumn string

	rows   func(Record) []map[string]any
	attach func(Record, []Row) error
}

// Helper is the storage layout and codec of one record type.
type Helper struct {
	Type     Type
	Category Category
	Table    string
	Shape    Shape

	// ValueColumn is the numeric column aggregations read, empty when the
	// type aggregates over something else (durations, child samples).
	ValueColumn string

	columns  []queryir.ColumnDef
	children []Child

	newRecord func() Record
	populate  func(Record, map[string]any)
	decode    func(Row, Record) error
	validate  func(Record) error
	dedupe    func(Record) ir.Object
}

var registry = make(map[Type]Helper)

func register(h Helper) {
	if _, dup := registry[h.Type]; dup {
		panic(fmt.Sprintf("record type %s registered twice", h.Type))
	}
	registry[h.Type] = h
}

// Lookup returns the helper of t.
func Lookup(t Type) (Helper, bool) {
	h, ok := registry[t]
	return h, ok
}

// MustLookup returns the helper of t and panics on an unknown type.
func MustLookup(t Type) Helper {
	h, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("unknown record type %s", t))
	}
	return h
}

// Types returns every registered record type, sorted.
func Types() []Type {
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// TypesIn returns the sorted record types of one category.
func TypesIn(c Category) []Type {
	types := []Type{}
	for _, t := range Types() {
		if registry[t].Category == c {
			types = append(types, t)
		}
	}
	return types
}

// ParseType validates a record-type name.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := registry[t]; !ok {
		return "", errs.ValidationField("record_type", "unknown record type %q", s)
	}
	return t, nil
}

// New returns an empty record of the helper's type.
func (h Helper) New() Record {
	return h.newRecord()
}

// StartColumn is the column a time filter or ordering starts from.
func (h Helper) StartColumn() string {
	if h.Shape == ShapeInstant {
		return ColTime
	}
	return ColStartTime
}

// EndColumn is the column holding the end of the record's span.
func (h Helper) EndColumn() string {
	if h.Shape == ShapeInstant {
		return ColTime
	}
	return ColEndTime
}

// LocalStartColumn is the generated wall-clock counterpart of StartColumn.
func (h Helper) LocalStartColumn() string {
	if h.Shape == ShapeInstant {
		return ColLocalTime
	}
	return ColLocalStartTime
}

// LocalEndColumn is the generated wall-clock counterpart of EndColumn.
func (h Helper) LocalEndColumn() string {
	if h.Shape == ShapeInstant {
		return ColLocalTime
	}
	return ColLocalEndTime
}

// Children lists the child tables of the record type.
func (h Helper) Children() []Child {
	return h.children
}

// CreateTableRequest returns the current table layout including child
// tables and generated local-time columns.
func (h Helper) CreateTableRequest() *queryir.CreateTableRequest {
	req := h.BaseTableRequest()
	req.Columns = append(req.Columns, h.LocalTimeColumns()...)
	return req
}

// BaseTableRequest returns the table layout without the generated
// local-time columns, which a later schema version adds.
func (h Helper) BaseTableRequest() *queryir.CreateTableRequest {
	cols := []queryir.ColumnDef{
		schema.PrimaryKey(),
		{Name: ColUUID, Type: "BLOB", NotNull: true, Unique: true},
		{Name: ColClientRecordID, Type: "TEXT"},
		{Name: ColClientRecordVersion, Type: "INTEGER", NotNull: true},
		{Name: ColAppID, Type: "INTEGER", NotNull: true},
		{Name: ColDeviceID, Type: "INTEGER"},
		{Name: ColLastModifiedTime, Type: "INTEGER", NotNull: true},
		{Name: ColRecordingMethod, Type: "INTEGER", NotNull: true},
		{Name: ColDedupeHash, Type: "BLOB", Unique: true},
	}
	switch h.Shape {
	case ShapeInterval:
		cols = append(cols,
			queryir.ColumnDef{Name: ColStartTime, Type: "INTEGER", NotNull: true},
			queryir.ColumnDef{Name: ColStartZoneOffset, Type: "INTEGER", NotNull: true},
			queryir.ColumnDef{Name: ColEndTime, Type: "INTEGER", NotNull: true},
			queryir.ColumnDef{Name: ColEndZoneOffset, Type: "INTEGER", NotNull: true},
		)
	case ShapeInstant:
		cols = append(cols,
			queryir.ColumnDef{Name: ColTime, Type: "INTEGER", NotNull: true},
			queryir.ColumnDef{Name: ColZoneOffset, Type: "INTEGER", NotNull: true},
		)
	}
	cols = append(cols, h.columns...)

	children := make([]*queryir.CreateTableRequest, 0, len(h.children))
	for _, c := range h.children {
		children = append(children, c.Table)
	}
	return &queryir.CreateTableRequest{
		Table:   h.Table,
		Columns: cols,
		ForeignKeys: []queryir.ForeignKey{
			{Column: ColAppID, RefTable: schema.AppInfoTable, RefColumn: schema.RowID, OnDelete: "CASCADE"},
			{Column: ColDeviceID, RefTable: schema.DeviceInfoTable, RefColumn: schema.RowID, OnDelete: "SET NULL"},
		},
		Indexes: []queryir.IndexDef{
			{Name: "idx_" + h.Table + "_start", Columns: []string{h.StartColumn()}},
			{Name: "idx_" + h.Table + "_app", Columns: []string{ColAppID}},
		},
		Children: children,
	}
}

// LocalTimeColumns returns the generated wall-clock columns: each stored
// instant shifted by its own zone offset.
func (h Helper) LocalTimeColumns() []queryir.ColumnDef {
	if h.Shape == ShapeInstant {
		return []queryir.ColumnDef{
			{Name: ColLocalTime, Type: "INTEGER", Generated: ColTime + " + " + ColZoneOffset + " * 1000"},
		}
	}
	return []queryir.ColumnDef{
		{Name: ColLocalStartTime, Type: "INTEGER", Generated: ColStartTime + " + " + ColStartZoneOffset + " * 1000"},
		{Name: ColLocalEndTime, Type: "INTEGER", Generated: ColEndTime + " + " + ColEndZoneOffset + " * 1000"},
	}
}

// Validate checks a record before it is written.
func (h Helper) Validate(rec Record) error {
	if rec.Type() != h.Type {
		return errs.ValidationField("record_type", "record of type %s passed to %s helper", rec.Type(), h.Type)
	}
	switch r := rec.(type) {
	case Timed:
		span := r.Span()
		if span.StartTime >= span.EndTime {
			return errs.ValidationField(ColStartTime, "start time %d must be before end time %d", span.StartTime, span.EndTime)
		}
		if err := checkZoneOffset(ColStartZoneOffset, span.StartZoneOffset); err != nil {
			return err
		}
		if err := checkZoneOffset(ColEndZoneOffset, span.EndZoneOffset); err != nil {
			return err
		}
	case Pointed:
		if err := checkZoneOffset(ColZoneOffset, r.Point().ZoneOffset); err != nil {
			return err
		}
	}
	if h.validate != nil {
		return h.validate(rec)
	}
	return nil
}

func checkZoneOffset(field string, offset int32) error {
	if offset < -maxZoneOffsetSeconds || offset > maxZoneOffsetSeconds {
		return errs.ValidationField(field, "zone offset %d out of range", offset)
	}
	return nil
}

// Values returns the column values of rec for its own table. app_id,
// device_id and dedupe_hash are resolved by the store and not included.
func (h Helper) Values(rec Record) map[string]any {
	m := rec.Meta()
	values := map[string]any{
		ColUUID:                UUIDBytes(m.UUID),
		ColClientRecordID:      nullString(m.ClientRecordID),
		ColClientRecordVersion: m.ClientRecordVersion,
		ColLastModifiedTime:    m.LastModifiedTime,
		ColRecordingMethod:     int64(m.RecordingMethod),
	}
	switch r := rec.(type) {
	case Timed:
		span := r.Span()
		values[ColStartTime] = span.StartTime
		values[ColStartZoneOffset] = int64(span.StartZoneOffset)
		values[ColEndTime] = span.EndTime
		values[ColEndZoneOffset] = int64(span.EndZoneOffset)
	case Pointed:
		pt := r.Point()
		values[ColTime] = pt.Time
		values[ColZoneOffset] = int64(pt.ZoneOffset)
	}
	h.populate(rec, values)
	return values
}

// ChildUpserts returns one insert request per child row of rec.
func (h Helper) ChildUpserts(rec Record) []queryir.ChildUpsert {
	out := []queryir.ChildUpsert{}
	for _, c := range h.children {
		for _, values := range c.rows(rec) {
			out = append(out, queryir.ChildUpsert{
				ParentColumn: schema.ParentKey,
				Request:      &queryir.UpsertRequest{Table: c.Table.Table, Values: values},
			})
		}
	}
	return out
}

// ReplaceChildren lists the child tables wiped when rec is overwritten.
func (h Helper) ReplaceChildren() []queryir.ChildTable {
	out := make([]queryir.ChildTable, 0, len(h.children))
	for _, c := range h.children {
		out = append(out, queryir.ChildTable{Table: c.Table.Table, ParentColumn: schema.ParentKey})
	}
	return out
}

// Decode builds a record from a row of the record table joined with the
// application and device tables.
func (h Helper) Decode(row Row) (Record, error) {
	rec := h.newRecord()
	m := rec.Meta()
	var err error
	if m.UUID, err = row.UUID(ColUUID); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Type, err)
	}
	m.ClientRecordID = row.String(ColClientRecordID)
	m.PackageName = row.String(schema.PackageName)
	m.Device = Device{
		Manufacturer: row.String(schema.DeviceManufacturer),
		Model:        row.String(schema.DeviceModel),
	}
	ints := []struct {
		col string
		dst *int64
	}{
		{ColClientRecordVersion, &m.ClientRecordVersion},
		{ColLastModifiedTime, &m.LastModifiedTime},
	}
	for _, f := range ints {
		if *f.dst, err = row.Int64(f.col); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", h.Type, f.col, err)
		}
	}
	method, err := row.Int64(ColRecordingMethod)
	if err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", h.Type, ColRecordingMethod, err)
	}
	m.RecordingMethod = int(method)
	devType, err := row.Int64(schema.DeviceType)
	if err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", h.Type, schema.DeviceType, err)
	}
	m.Device.Type = int(devType)

	switch r := rec.(type) {
	case Timed:
		span := r.Span()
		if err := decodeInts(row, map[string]*int64{ColStartTime: &span.StartTime, ColEndTime: &span.EndTime}); err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}
		if span.StartZoneOffset, err = decodeOffset(row, ColStartZoneOffset); err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}
		if span.EndZoneOffset, err = decodeOffset(row, ColEndZoneOffset); err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}
	case Pointed:
		pt := r.Point()
		if pt.Time, err = row.Int64(ColTime); err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}
		if pt.ZoneOffset, err = decodeOffset(row, ColZoneOffset); err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}
	}
	if err := h.decode(row, rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Type, err)
	}
	return rec, nil
}

// AttachChildren decodes child rows of one parent into rec.
func (h Helper) AttachChildren(rec Record, table string, rows []Row) error {
	for _, c := range h.children {
		if c.Table.Table == table {
			return c.attach(rec, rows)
		}
	}
	return fmt.Errorf("%s has no child table %s", h.Type, table)
}

// DedupeHash is the content hash identifying the same observation from the
// same app, independent of uuid and client ids.
func (h Helper) DedupeHash(rec Record) ([]byte, error) {
	fields := ir.Object{"package_name": ir.String(rec.Meta().PackageName)}
	switch r := rec.(type) {
	case Timed:
		fields[ColStartTime] = ir.Int(r.Span().StartTime)
		fields[ColEndTime] = ir.Int(r.Span().EndTime)
	case Pointed:
		fields[ColTime] = ir.Int(r.Point().Time)
	}
	for k, v := range h.dedupe(rec) {
		fields[k] = v
	}
	return ir.DedupeHash(string(h.Type), fields)
}

// EnsureUUID assigns a random uuid to a record that has none.
func EnsureUUID(rec Record) {
	if m := rec.Meta(); m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
}

func decodeInts(row Row, fields map[string]*int64) error {
	for col, dst := range fields {
		v, err := row.Int64(col)
		if err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
		*dst = v
	}
	return nil
}

func decodeOffset(row Row, col string) (int32, error) {
	v, err := row.Int64(col)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return int32(v), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// childTable builds a child table keyed by parent_key with cascade delete.
func childTable(parent, name string, cols ...queryir.ColumnDef) *queryir.CreateTableRequest {
	all := append([]queryir.ColumnDef{{Name: schema.ParentKey, Type: "INTEGER", NotNull: true}}, cols...)
	return &queryir.CreateTableRequest{
		Table:   name,
		Columns: all,
		ForeignKeys: []queryir.ForeignKey{
			{Column: schema.ParentKey, RefTable: parent, RefColumn: schema.RowID, OnDelete: "CASCADE"},
		},
		Indexes: []queryir.IndexDef{{Name: "idx_" + name + "_parent", Columns: []string{schema.ParentKey}}},
	}
}
