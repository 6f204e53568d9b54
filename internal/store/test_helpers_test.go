package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/testutil"
)

// Test packages. Writers own data; the reader only reads granted types.
const (
	appA   = "com.example.a"
	appB   = "com.example.b"
	reader = "com.example.reader"
)

// t0 is a fixed instant well after the epoch, in millis.
const t0 int64 = 1_700_000_000_000

var (
	callerA      = identity.Caller{PackageName: appA}
	callerB      = identity.Caller{PackageName: appB}
	callerReader = identity.Caller{PackageName: reader}
)

// defaultGrants lets both writers write, appA read steps from anyone, and
// the reader read steps and heart rate.
func defaultGrants() map[string]identity.Grant {
	return map[string]identity.Grant{
		appA:   {Write: true, ReadTypes: []string{string(record.TypeSteps)}},
		appB:   {Write: true},
		reader: {ReadTypes: []string{string(record.TypeSteps), string(record.TypeHeartRate)}},
	}
}

// createTestStore creates a new store in a temp dir with the default
// grants and a fixed clock.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	clock := testutil.NewClockMillis(t0)
	base := []Option{
		WithOracle(identity.NewStaticOracle(defaultGrants())),
		WithClock(clock.Now),
	}
	s, err := Open(path, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustUpsert writes records as caller and returns the results.
func mustUpsert(t *testing.T, s *Store, caller identity.Caller, recs ...record.Record) []UpsertResult {
	t.Helper()
	res, err := s.UpsertRecords(context.Background(), caller, recs)
	require.NoError(t, err)
	return res
}

// countRows counts all rows of table.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
