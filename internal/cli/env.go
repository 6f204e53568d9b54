package cli

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/healthstore/internal/config"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/metrics"
	"github.com/roach88/healthstore/internal/store"
)

// env is the per-invocation state shared by every store command.
type env struct {
	opts    *RootOptions
	cfg     *config.Config
	store   *store.Store
	metrics *metrics.Collector
	out     *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openEnv loads the config, opens the store and applies the configured
// priority lists. The caller must close the env.
func openEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	out := newFormatter(opts, cmd)

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	m := metrics.New()
	storeOpts := append(cfg.StoreOptions(), store.WithLogger(logger), store.WithMetrics(m))
	logger.Debug("opening database", "path", cfg.Database.Path, "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Path, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	e := &env{opts: opts, cfg: cfg, store: st, metrics: m, out: out}
	for _, pl := range cfg.PriorityLists() {
		if err := st.SetPriorityList(ctx(cmd), pl.Category, pl.Packages); err != nil {
			e.close(cmd)
			return nil, WrapExitError(ExitCommandError, "failed to apply priority list "+string(pl.Category), err)
		}
	}
	return e, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

// close closes the store and, with --metrics, prints the collected metrics.
func (e *env) close(cmd *cobra.Command) {
	if e.opts.Metrics {
		if err := e.metrics.WriteText(cmd.ErrOrStderr()); err != nil {
			slog.Error("error writing metrics", "error", err)
		}
	}
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// caller returns the calling app from --package.
func (e *env) caller() (identity.Caller, error) {
	if e.opts.Package == "" {
		return identity.Caller{}, NewExitError(ExitCommandError, "--package is required")
	}
	return identity.Caller{PackageName: e.opts.Package, InBackground: e.opts.Background}, nil
}

// withStore runs fn against an opened env and closes it afterwards.
func withStore(cmd *cobra.Command, opts *RootOptions, fn func(*env) error) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.close(cmd)
	return fn(e)
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}

// parseTime accepts RFC 3339 timestamps or epoch millis.
func parseTime(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, NewExitError(ExitCommandError, "invalid time "+strconv.Quote(s)+": want RFC 3339 or epoch millis")
	}
	return t.UnixMilli(), nil
}

// parseLocalTime accepts a wall-clock time without zone, or epoch millis,
// and returns wall-clock millis.
func parseLocalTime(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, NewExitError(ExitCommandError, "invalid local time "+strconv.Quote(s)+": want 2006-01-02[T15:04:05] or epoch millis")
}

// timeFlags are the --start/--end/--local flags shared by several commands.
type timeFlags struct {
	Start string
	End   string
	Local bool
}

func (f *timeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Start, "start", "", "window start (RFC 3339 or epoch millis; wall clock with --local)")
	cmd.Flags().StringVar(&f.End, "end", "", "window end, exclusive")
	cmd.Flags().BoolVar(&f.Local, "local", false, "interpret the window as wall-clock time")
}

func (f *timeFlags) set() bool { return f.Start != "" || f.End != "" }

// window parses both bounds; both are required once either is set.
func (f *timeFlags) window() (start, end int64, err error) {
	if f.Start == "" || f.End == "" {
		return 0, 0, NewExitError(ExitCommandError, "--start and --end must be given together")
	}
	parse := parseTime
	if f.Local {
		parse = parseLocalTime
	}
	if start, err = parse(f.Start); err != nil {
		return 0, 0, err
	}
	if end, err = parse(f.End); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (f *timeFlags) timeRange() (*store.TimeRange, error) {
	if !f.set() {
		return nil, nil
	}
	start, end, err := f.window()
	if err != nil {
		return nil, err
	}
	return &store.TimeRange{Start: start, End: end, Local: f.Local}, nil
}
