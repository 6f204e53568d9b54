package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/healthstore/internal/aggregate"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/metrics"
	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/querysql"
)

// Supported database/sql driver names.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
)

// Limits bound request sizes.
type Limits struct {
	MaxDataSourcesPerApp int
	MaxPageSize          int
	DefaultPageSize      int
	MaxReadRows          int
	MaxBuckets           int
}

// DefaultLimits are used for any zero field of a configured Limits.
var DefaultLimits = Limits{
	MaxDataSourcesPerApp: 20,
	MaxPageSize:          5000,
	DefaultPageSize:      1000,
	MaxReadRows:          50000,
	MaxBuckets:           aggregate.DefaultMaxBuckets,
}

func (l Limits) withDefaults() Limits {
	if l.MaxDataSourcesPerApp <= 0 {
		l.MaxDataSourcesPerApp = DefaultLimits.MaxDataSourcesPerApp
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = DefaultLimits.MaxPageSize
	}
	if l.DefaultPageSize <= 0 || l.DefaultPageSize > l.MaxPageSize {
		l.DefaultPageSize = min(DefaultLimits.DefaultPageSize, l.MaxPageSize)
	}
	if l.MaxReadRows <= 0 {
		l.MaxReadRows = DefaultLimits.MaxReadRows
	}
	if l.MaxBuckets <= 0 {
		l.MaxBuckets = DefaultLimits.MaxBuckets
	}
	return l
}

// Store is the health data store.
type Store struct {
	db       *sql.DB
	driver   string
	compiler *querysql.SQLCompiler
	oracle   identity.Oracle
	logs     AccessLogSink
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time
	limits   Limits

	targetVersion int
}

// Option configures a Store.
type Option func(*Store)

// WithDriver selects the database/sql driver, DriverMattn by default.
func WithDriver(name string) Option {
	return func(s *Store) { s.driver = name }
}

// WithOracle sets the permission oracle. Without one every caller has no
// permissions.
func WithOracle(o identity.Oracle) Option {
	return func(s *Store) { s.oracle = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records operation metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithClock overrides the time source used for last-modified and access
// times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLimits overrides request limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithAccessLogSink replaces the default access_logs_table writer.
func WithAccessLogSink(sink AccessLogSink) Option {
	return func(s *Store) { s.logs = sink }
}

// WithSchemaVersion stops migration at version instead of the latest. Used
// to exercise upgrades.
func WithSchemaVersion(version int) Option {
	return func(s *Store) { s.targetVersion = version }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		driver:        DriverMattn,
		compiler:      querysql.NewSQLCompiler(),
		now:           time.Now,
		targetVersion: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.oracle == nil {
		s.oracle = identity.NewStaticOracle(nil)
	}
	if s.logs == nil {
		s.logs = tableSink{}
	}
	s.limits = s.limits.withDefaults()

	if s.driver != DriverMattn && s.driver != DriverModernc {
		return nil, fmt.Errorf("unsupported driver %q", s.driver)
	}
	db, err := sql.Open(s.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; one connection also keeps
	// the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	s.db = db

	seq, err := newSequencer(s.logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	target := s.targetVersion
	if target < 0 {
		target = seq.Latest()
	}
	from, to, err := seq.RunTo(context.Background(), db, target)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.logger.Debug("store opened", "path", path, "driver", s.driver, "schema_from", from, "schema_to", to)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Metrics returns the configured collector, possibly nil.
func (s *Store) Metrics() *metrics.Collector {
	return s.metrics
}

// SchemaVersion returns the current schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return migrate.CurrentVersion(ctx, s.db)
}

// Migrate upgrades the schema to the latest version and reports the
// versions before and after.
func (s *Store) Migrate(ctx context.Context) (from, to int, err error) {
	seq, err := newSequencer(s.logger)
	if err != nil {
		return 0, 0, err
	}
	return seq.Run(ctx, s.db)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// observe records metrics for one operation; call it deferred with a
// pointer to the operation's named error result.
func (s *Store) observe(op string, started time.Time, err *error) {
	s.metrics.Observe(op, started, *err)
	if *err != nil {
		s.logger.Debug("store operation failed", "op", op, "error", *err)
	}
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
