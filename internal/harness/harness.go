package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/healthstore/internal/aggregate"
	"github.com/roach88/healthstore/internal/config"
	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/store"
	"github.com/roach88/healthstore/internal/testutil"
)

// Harness executes the steps of one scenario against one store.
type Harness struct {
	store  *store.Store
	clock  *testutil.Clock
	logger *slog.Logger
}

// observed is what a step produced. It is both checked against the step's
// expect clause and recorded as the trace result.
type observed struct {
	Count      *int                `json:"count,omitempty"`
	Outcomes   []string            `json:"outcomes,omitempty"`
	Buckets    *int                `json:"buckets,omitempty"`
	Values     map[string]*float64 `json:"values,omitempty"`
	Swept      map[string]int64    `json:"swept,omitempty"`
	AccessLogs *int64              `json:"access_logs,omitempty"`
}

func (o *observed) empty() bool {
	return o.Count == nil && o.Outcomes == nil && o.Buckets == nil && o.Values == nil &&
		o.Swept == nil && o.AccessLogs == nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database whose clock starts at
// scenario.Clock. Store errors carrying an error code are step outcomes;
// any other failure aborts the run.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenarioConfig(scenario)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewClockMillis(scenario.Clock)
	logger := slog.New(slog.DiscardHandler)
	opts := append(cfg.StoreOptions(), store.WithClock(clock.Now), store.WithLogger(logger))
	st, err := store.Open(":memory:", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, pl := range cfg.PriorityLists() {
		if err := st.SetPriorityList(ctx, pl.Category, pl.Packages); err != nil {
			return nil, fmt.Errorf("failed to apply priority list %s: %w", pl.Category, err)
		}
	}

	h := &Harness{store: st, clock: clock, logger: logger}
	result := NewResult()
	for i := range scenario.Steps {
		if err := h.executeStep(ctx, i, &scenario.Steps[i], result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, scenario.Steps[i].Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}
	return result, nil
}

// scenarioConfig parses the scenario's config section with the same
// validation as a config file.
func scenarioConfig(s *Scenario) (*config.Config, error) {
	if s.Config.Kind == 0 {
		return config.Parse(nil)
	}
	data, err := yaml.Marshal(&s.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario config: %w", err)
	}
	return cfg, nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step *Step, result *Result) error {
	if step.Op == OpAdvance {
		d, err := time.ParseDuration(step.By)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		return nil
	}

	caller := identity.Caller{PackageName: step.Package, InBackground: step.Background}
	var (
		obs observed
		err error
	)
	switch step.Op {
	case OpUpsert:
		err = h.upsert(ctx, caller, step, &obs)
	case OpRead:
		err = h.read(ctx, caller, step, &obs)
	case OpAggregate:
		err = h.aggregate(ctx, caller, step, &obs)
	case OpDelete:
		err = h.delete(ctx, caller, step, &obs)
	case OpSetPriority:
		err = h.store.SetPriorityList(ctx, record.Category(step.Category), step.Packages)
	case OpSweep:
		err = h.sweep(ctx, step, &obs)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	outcome := OutcomeOK
	if err != nil {
		code := errs.CodeOf(err)
		if code == "" {
			return err
		}
		outcome = string(code)
		obs = observed{}
	}
	var traced any
	if !obs.empty() {
		traced = obs
	}
	result.addTrace(step.Op, step.Package, outcome, traced)
	h.logger.Debug("scenario step", "index", index, "op", step.Op, "outcome", outcome)

	for _, msg := range checkExpect(step.Expect, outcome, &obs) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", index, step.Op, msg))
	}
	return nil
}

func (h *Harness) upsert(ctx context.Context, caller identity.Caller, step *Step, obs *observed) error {
	recs := make([]record.Record, 0, len(step.Records))
	for i := range step.Records {
		rec, err := record.DecodeYAML(&step.Records[i])
		if err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		recs = append(recs, rec)
	}
	results, err := h.store.UpsertRecords(ctx, caller, recs)
	if err != nil {
		return err
	}
	obs.Outcomes = make([]string, len(results))
	for i, r := range results {
		obs.Outcomes[i] = r.Outcome.String()
	}
	return nil
}

func (h *Harness) read(ctx context.Context, caller identity.Caller, step *Step, obs *observed) error {
	ids, err := parseIDs(step.IDs)
	if err != nil {
		return err
	}
	res, err := h.store.ReadRecords(ctx, caller, store.ReadRecordsRequest{
		Type:       record.Type(step.Type),
		IDs:        ids,
		Range:      stepRange(step),
		Origins:    step.Origins,
		PageSize:   step.PageSize,
		Descending: step.Descending,
	})
	if err != nil {
		return err
	}
	n := len(res.Records)
	obs.Count = &n
	return nil
}

func (h *Harness) aggregate(ctx context.Context, caller identity.Caller, step *Step, obs *observed) error {
	req := aggregate.Request{
		Start:   step.Start,
		End:     step.End,
		Local:   step.Local,
		Origins: step.Origins,
	}
	for _, t := range step.Types {
		req.Types = append(req.Types, aggregate.Type(t))
	}
	if step.Every != "" {
		d, err := time.ParseDuration(step.Every)
		if err != nil {
			return err
		}
		req.GroupBy = &aggregate.Grouping{Duration: d}
	}
	buckets, err := h.store.Aggregate(ctx, caller, req)
	if err != nil {
		return err
	}
	n := len(buckets)
	obs.Buckets = &n
	if n > 0 {
		obs.Values = make(map[string]*float64, len(buckets[0].Results))
		for t, r := range buckets[0].Results {
			obs.Values[string(t)] = r.Value
		}
	}
	return nil
}

func (h *Harness) delete(ctx context.Context, caller identity.Caller, step *Step, obs *observed) error {
	if step.Type != "" {
		ids, err := parseIDs(step.IDs)
		if err != nil {
			return err
		}
		return h.store.DeleteRecords(ctx, caller, record.Type(step.Type), ids)
	}
	types := make([]record.Type, len(step.Types))
	for i, t := range step.Types {
		types[i] = record.Type(t)
	}
	deleted, err := h.store.DeleteRecordsByFilter(ctx, caller, types, stepRange(step))
	if err != nil {
		return err
	}
	n := int(deleted)
	obs.Count = &n
	return nil
}

func (h *Harness) sweep(ctx context.Context, step *Step, obs *observed) error {
	res, err := h.store.DeleteOlderThan(ctx, step.Cutoff)
	if err != nil {
		return err
	}
	obs.Swept = make(map[string]int64, len(res.Records))
	for t, n := range res.Records {
		obs.Swept[string(t)] = n
	}
	obs.AccessLogs = &res.AccessLogs
	return nil
}

// stepRange returns the step's time range, or nil when it has none.
func stepRange(step *Step) *store.TimeRange {
	if step.Start == 0 && step.End == 0 {
		return nil
	}
	return &store.TimeRange{Start: step.Start, End: step.End, Local: step.Local}
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: %w", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// checkExpect compares a step's outcome with its expect clause. A step
// without a clause must succeed.
func checkExpect(expect *Expect, outcome string, obs *observed) []string {
	want := OutcomeOK
	if expect != nil && expect.Error != "" {
		want = expect.Error
	}
	if outcome != want {
		return []string{fmt.Sprintf("expected outcome %s, got %s", want, outcome)}
	}
	if expect == nil || outcome != OutcomeOK {
		return nil
	}

	var failures []string
	if expect.Count != nil && (obs.Count == nil || *obs.Count != *expect.Count) {
		failures = append(failures, fmt.Sprintf("expected count %d, got %s", *expect.Count, intString(obs.Count)))
	}
	if expect.Buckets != nil && (obs.Buckets == nil || *obs.Buckets != *expect.Buckets) {
		failures = append(failures, fmt.Sprintf("expected %d bucket(s), got %s", *expect.Buckets, intString(obs.Buckets)))
	}
	if expect.Outcomes != nil && !slices.Equal(expect.Outcomes, obs.Outcomes) {
		failures = append(failures, fmt.Sprintf("expected outcomes %v, got %v", expect.Outcomes, obs.Outcomes))
	}
	keys := make([]string, 0, len(expect.Values))
	for k := range expect.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		got, ok := obs.Values[k]
		switch {
		case !ok:
			failures = append(failures, fmt.Sprintf("expected %s = %v, not aggregated", k, expect.Values[k]))
		case got == nil:
			failures = append(failures, fmt.Sprintf("expected %s = %v, got no value", k, expect.Values[k]))
		case !approxEqual(*got, expect.Values[k]):
			failures = append(failures, fmt.Sprintf("expected %s = %v, got %v", k, expect.Values[k], *got))
		}
	}
	return failures
}

func intString(n *int) string {
	if n == nil {
		return "nothing"
	}
	return fmt.Sprint(*n)
}

// approxEqual tolerates float rounding in prorated sums and averages.
func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= 1e-6
}
