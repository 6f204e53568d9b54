// Package schema holds the table definitions of the infrastructure and
// medical tables. Record tables are defined per type by package record.
package schema

import "github.com/roach88/healthstore/internal/queryir"

// Infrastructure table names.
const (
	AppInfoTable    = "application_info_table"
	DeviceInfoTable = "device_info_table"
	AccessLogsTable = "access_logs_table"
	PriorityTable   = "health_data_category_priority_table"
)

// Medical table names.
const (
	MedicalDataSourceTable      = "medical_data_source_table"
	MedicalResourceTable        = "medical_resource_table"
	MedicalResourceIndicesTable = "medical_resource_indices_table"
)

// Shared column names.
const (
	RowID            = "row_id"
	UUID             = "uuid"
	AppID            = "app_id"
	PackageName      = "package_name"
	LastModifiedTime = "last_modified_time"
	ParentKey        = "parent_key"
)

// Application and device columns.
const (
	AppName            = "app_name"
	DeviceManufacturer = "manufacturer"
	DeviceModel        = "model"
	DeviceType         = "device_type"
)

// Access log columns.
const (
	LogRecordTypes               = "record_types"
	LogMedicalResourceTypes      = "medical_resource_types"
	LogOperationType             = "operation_type"
	LogAccessTime                = "access_time"
	LogMedicalDataSourceAccessed = "medical_data_source_accessed"
)

// Priority list columns.
const (
	PriorityCategory = "category"
	PriorityOrder    = "app_id_priority_order"
)

// Medical data source columns.
const (
	DataSourceDisplayName = "display_name"
	DataSourceBaseURI     = "base_uri"
	DataSourceFHIRVersion = "fhir_version"
)

// Medical resource columns.
const (
	ResourceType               = "resource_type"
	ResourceID                 = "resource_id"
	ResourcePayload            = "payload"
	ResourceVersion            = "version"
	ResourceDataSourceRowID    = "data_source_row_id"
	ResourceRowID              = "resource_row_id"
	ResourceTypeClassification = "resource_type_classification"
)

// PrimaryKey is the auto-increment row id every table carries.
func PrimaryKey() queryir.ColumnDef {
	return queryir.ColumnDef{Name: RowID, Type: "INTEGER", PrimaryKey: true, AutoIncrement: true}
}

// Core returns the tables every record table depends on.
func Core() []*queryir.CreateTableRequest {
	return []*queryir.CreateTableRequest{AppInfo(), DeviceInfo(), AccessLogs()}
}

// AppInfo is the registry of client applications. Records reference it by
// app_id.
func AppInfo() *queryir.CreateTableRequest {
	return &queryir.CreateTableRequest{
		Table: AppInfoTable,
		Columns: []queryir.ColumnDef{
			PrimaryKey(),
			{Name: PackageName, Type: "TEXT", NotNull: true, Unique: true},
			{Name: AppName, Type: "TEXT"},
		},
	}
}

// DeviceInfo is the registry of capture devices. Empty strings stand in for
// unknown manufacturer or model so the unique index sees them as equal.
func DeviceInfo() *queryir.CreateTableRequest {
	return &queryir.CreateTableRequest{
		Table: DeviceInfoTable,
		Columns: []queryir.ColumnDef{
			PrimaryKey(),
			{Name: DeviceManufacturer, Type: "TEXT", NotNull: true},
			{Name: DeviceModel, Type: "TEXT", NotNull: true},
			{Name: DeviceType, Type: "INTEGER", NotNull: true},
		},
		Indexes: []queryir.IndexDef{{
			Name:    "idx_device_info_identity",
			Columns: []string{DeviceManufacturer, DeviceModel, DeviceType},
			Unique:  true,
		}},
	}
}

// AccessLogs holds one immutable row per logged data access.
func AccessLogs() *queryir.CreateTableRequest {
	return &queryir.CreateTableRequest{
		Table: AccessLogsTable,
		Columns: []queryir.ColumnDef{
			PrimaryKey(),
			{Name: AppID, Type: "INTEGER", NotNull: true},
			{Name: LogRecordTypes, Type: "TEXT", NotNull: true},
			{Name: LogMedicalResourceTypes, Type: "TEXT", NotNull: true},
			{Name: LogOperationType, Type: "INTEGER", NotNull: true},
			{Name: LogAccessTime, Type: "INTEGER", NotNull: true},
			{Name: LogMedicalDataSourceAccessed, Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []queryir.ForeignKey{
			{Column: AppID, RefTable: AppInfoTable, RefColumn: RowID, OnDelete: "CASCADE"},
		},
		Indexes: []queryir.IndexDef{{Name: "idx_access_logs_time", Columns: []string{LogAccessTime}}},
	}
}

// Priority stores one ordered package list per health data category. The
// order is a JSON array of package names.
func Priority() *queryir.CreateTableRequest {
	return &queryir.CreateTableRequest{
		Table: PriorityTable,
		Columns: []queryir.ColumnDef{
			PrimaryKey(),
			{Name: PriorityCategory, Type: "TEXT", NotNull: true, Unique: true},
			{Name: PriorityOrder, Type: "TEXT", NotNull: true},
		},
	}
}

// Medical returns the medical tables in dependency order. The resource
// table carries the indices table as a child.
func Medical() []*queryir.CreateTableRequest {
	return []*queryir.CreateTableRequest{MedicalDataSource(), MedicalResource()}
}

// MedicalDataSource is created without fhir_version; the column arrives
// in a later migration step (see FHIRVersionColumn).
func MedicalDataSource() *queryir.CreateTableRequest {
	return &queryir.CreateTableRequest{
		Table: MedicalDataSourceTable,
		Columns: []queryir.ColumnDef{
			PrimaryKey(),
			{Name: AppID, Type: "INTEGER", NotNull: true},
			{Name: DataSourceDisplayName, Type: "TEXT", NotNull: true},
			{Name: DataSourceBaseURI, Type: "TEXT", NotNull: true},
			{Name: UUID, Type: "BLOB", NotNull: true, Unique: true},
			{Name: LastModifiedTime, Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []queryir.ForeignKey{
			{Column: AppID, RefTable: AppInfoTable, RefColumn: RowID, OnDelete: "CASCADE"},
		},
		Indexes: []queryir.IndexDef{{
			Name:    "idx_medical_data_source_display_name",
			Columns: []string{DataSourceDisplayName, AppID},
			Unique:  true,
		}},
	}
}

// FHIRVersionColumn is added to the data source table by migration.
func FHIRVersionColumn() queryir.ColumnDef {
	return queryir.ColumnDef{Name: DataSourceFHIRVersion, Type: "TEXT"}
}

// MedicalResource stores FHIR-like resources. Deleting a data source
// cascades to its resources, and deleting a resource cascades to its index
// rows.
func MedicalResource() *queryir.CreateTableRequest {
	return &queryir.CreateTableRequest{
		Table: MedicalResourceTable,
		Columns: []queryir.ColumnDef{
			PrimaryKey(),
			{Name: ResourceType, Type: "TEXT", NotNull: true},
			{Name: ResourceID, Type: "TEXT", NotNull: true},
			{Name: ResourcePayload, Type: "TEXT", NotNull: true},
			{Name: ResourceVersion, Type: "TEXT", NotNull: true},
			{Name: ResourceDataSourceRowID, Type: "INTEGER", NotNull: true},
			{Name: UUID, Type: "BLOB", NotNull: true, Unique: true},
			{Name: LastModifiedTime, Type: "INTEGER", NotNull: true},
		},
		ForeignKeys: []queryir.ForeignKey{
			{Column: ResourceDataSourceRowID, RefTable: MedicalDataSourceTable, RefColumn: RowID, OnDelete: "CASCADE"},
		},
		Indexes: []queryir.IndexDef{{
			Name:    "idx_medical_resource_identity",
			Columns: []string{ResourceDataSourceRowID, ResourceType, ResourceID},
			Unique:  true,
		}},
		Children: []*queryir.CreateTableRequest{{
			Table: MedicalResourceIndicesTable,
			Columns: []queryir.ColumnDef{
				{Name: ResourceRowID, Type: "INTEGER", NotNull: true},
				{Name: ResourceTypeClassification, Type: "INTEGER", NotNull: true},
			},
			ForeignKeys: []queryir.ForeignKey{
				{Column: ResourceRowID, RefTable: MedicalResourceTable, RefColumn: RowID, OnDelete: "CASCADE"},
			},
			Indexes: []queryir.IndexDef{{
				Name:    "idx_medical_resource_indices_resource",
				Columns: []string{ResourceRowID},
			}},
		}},
	}
}
