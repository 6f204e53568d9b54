package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/querysql"
	"github.com/roach88/healthstore/internal/schema"
)

// Operation is the kind of access an AccessLog documents.
type Operation int

const (
	OperationUpsert Operation = iota
	OperationRead
	OperationDelete
)

func (o Operation) String() string {
	switch o {
	case OperationUpsert:
		return "UPSERT"
	case OperationRead:
		return "READ"
	case OperationDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// AccessLog is one immutable access entry.
type AccessLog struct {
	PackageName               string    `json:"package_name"`
	RecordTypes               []string  `json:"record_types"`
	MedicalResourceTypes      []string  `json:"medical_resource_types"`
	Operation                 Operation `json:"operation"`
	AccessTime                int64     `json:"access_time"`
	MedicalDataSourceAccessed bool      `json:"medical_data_source_accessed"`
}

// AccessLogSink appends entries inside the caller's transaction, so an
// entry commits or rolls back with the operation it documents.
type AccessLogSink interface {
	Append(ctx context.Context, q migrate.Querier, appID int64, entry AccessLog) error
}

// tableSink writes access_logs_table.
type tableSink struct{}

func (tableSink) Append(ctx context.Context, q migrate.Querier, appID int64, entry AccessLog) error {
	u := &queryir.UpsertRequest{
		Table: schema.AccessLogsTable,
		Values: map[string]any{
			schema.AppID:                        appID,
			schema.LogRecordTypes:               joinTypes(entry.RecordTypes),
			schema.LogMedicalResourceTypes:      joinTypes(entry.MedicalResourceTypes),
			schema.LogOperationType:             int64(entry.Operation),
			schema.LogAccessTime:                entry.AccessTime,
			schema.LogMedicalDataSourceAccessed: boolInt(entry.MedicalDataSourceAccessed),
		},
	}
	compiler := querysql.NewSQLCompiler()
	stmt, args, err := compiler.CompileInsert(u)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

// logAccess records entry for the caller's app.
func (s *Store) logAccess(ctx context.Context, q migrate.Querier, packageName string, entry AccessLog) error {
	appID, err := s.ensureApp(ctx, q, packageName)
	if err != nil {
		return err
	}
	entry.PackageName = packageName
	entry.AccessTime = s.nowMillis()
	if err := s.logs.Append(ctx, q, appID, entry); err != nil {
		return fmt.Errorf("access log: %w", err)
	}
	return nil
}

// AccessLogs returns entries with access time at or after since, oldest
// first. The store itself never reads them back.
func (s *Store) AccessLogs(ctx context.Context, since int64) ([]AccessLog, error) {
	r := queryir.Read(schema.AccessLogsTable).
		Select(schema.AccessLogsTable+".*", schema.AppInfoTable+"."+schema.PackageName).
		WithJoin(queryir.InnerJoin(schema.AppInfoTable, schema.AppID, schema.RowID)).
		Filter(queryir.Ge(schema.AccessLogsTable+"."+schema.LogAccessTime, since)).
		Order(schema.AccessLogsTable+"."+schema.RowID, false)
	rows, err := s.query(ctx, s.db, r)
	if err != nil {
		return nil, fmt.Errorf("read access logs: %w", err)
	}
	logs := make([]AccessLog, 0, len(rows))
	for _, row := range rows {
		op, err := row.Int64(schema.LogOperationType)
		if err != nil {
			return nil, err
		}
		at, err := row.Int64(schema.LogAccessTime)
		if err != nil {
			return nil, err
		}
		ds, err := row.Int64(schema.LogMedicalDataSourceAccessed)
		if err != nil {
			return nil, err
		}
		logs = append(logs, AccessLog{
			PackageName:               row.String(schema.PackageName),
			RecordTypes:               splitTypes(row.String(schema.LogRecordTypes)),
			MedicalResourceTypes:      splitTypes(row.String(schema.LogMedicalResourceTypes)),
			Operation:                 Operation(op),
			AccessTime:                at,
			MedicalDataSourceAccessed: ds != 0,
		})
	}
	return logs, nil
}

func joinTypes(types []string) string {
	sorted := append([]string(nil), types...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func splitTypes(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
