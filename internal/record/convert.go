package record

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Row is one result row keyed by column name. Driver values arrive as
// int64, float64, string, []byte or nil; the As* helpers normalize them.
type Row map[string]any

// Int64 reads an integer column. NULL reads as 0.
func (r Row) Int64(column string) (int64, error) {
	return AsInt64(r[column])
}

// Float64 reads a real column. NULL reads as 0.
func (r Row) Float64(column string) (float64, error) {
	return AsFloat64(r[column])
}

// String reads a text column. NULL reads as "".
func (r Row) String(column string) string {
	return AsString(r[column])
}

// UUID reads a 16-byte blob column.
func (r Row) UUID(column string) (uuid.UUID, error) {
	return AsUUID(r[column])
}

func AsInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("cannot read %T as integer", v)
	}
}

func AsFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot read %T as real", v)
	}
}

func AsString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

func AsUUID(v any) (uuid.UUID, error) {
	switch b := v.(type) {
	case []byte:
		return uuid.FromBytes(b)
	case string:
		if len(b) == 16 {
			return uuid.FromBytes([]byte(b))
		}
		return uuid.Parse(b)
	case nil:
		return uuid.Nil, fmt.Errorf("uuid is NULL")
	default:
		return uuid.Nil, fmt.Errorf("cannot read %T as uuid", v)
	}
}

// UUIDBytes is the storage form of a uuid.
func UUIDBytes(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// Group is a run of rows sharing one parent key.
type Group struct {
	Key  int64
	Rows []Row
}

// GroupByParent splits rows into runs of consecutive equal values of
// column. Rows must already be ordered by that column; a key that
// reappears after a different key is an error.
func GroupByParent(rows []Row, column string) ([]Group, error) {
	groups := []Group{}
	seen := make(map[int64]bool)
	for _, row := range rows {
		key, err := row.Int64(column)
		if err != nil {
			return nil, fmt.Errorf("group by %s: %w", column, err)
		}
		if n := len(groups); n > 0 && groups[n-1].Key == key {
			groups[n-1].Rows = append(groups[n-1].Rows, row)
			continue
		}
		if seen[key] {
			return nil, fmt.Errorf("group by %s: rows for key %d are not contiguous", column, key)
		}
		seen[key] = true
		groups = append(groups, Group{Key: key, Rows: []Row{row}})
	}
	return groups, nil
}
