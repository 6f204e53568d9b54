package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/roach88/healthstore/internal/record"
)

// Engine evaluates aggregation requests.
type Engine struct {
	source     Source
	priorities PriorityProvider
	maxBuckets int
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxBuckets overrides DefaultMaxBuckets.
func WithMaxBuckets(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxBuckets = n
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an engine reading from source.
func New(source Source, priorities PriorityProvider, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		priorities: priorities,
		maxBuckets: DefaultMaxBuckets,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregate computes every requested type for every bucket of the window.
func (e *Engine) Aggregate(ctx context.Context, req Request) ([]Bucket, error) {
	spans, err := validate(req, e.maxBuckets)
	if err != nil {
		return nil, err
	}
	r := &run{
		engine:  e,
		req:     req,
		samples: make(map[sampleKey][]Sample),
		ranks:   make(map[record.Category]map[string]int),
	}
	types := append([]Type(nil), req.Types...)
	sortTypes(types)

	buckets := make([]Bucket, 0, len(spans))
	for _, sp := range spans {
		b := Bucket{Start: sp.start, End: sp.end, Results: make(map[Type]Result, len(types))}
		for _, t := range types {
			res, err := r.compute(ctx, t, sp)
			if err != nil {
				return nil, fmt.Errorf("aggregate %s: %w", t, err)
			}
			b.Results[t] = res
		}
		buckets = append(buckets, b)
	}
	e.logger.Debug("aggregated", "types", len(types), "buckets", len(buckets), "local", req.Local)
	return buckets, nil
}

type sampleKey struct {
	recordType record.Type
	history    bool
}

// run caches samples and priority rankings for one request.
type run struct {
	engine  *Engine
	req     Request
	samples map[sampleKey][]Sample
	ranks   map[record.Category]map[string]int
	prof    *profile
}

// rank maps each package of a category's priority list to its position.
// An empty map means no list is configured.
func (r *run) rank(ctx context.Context, c record.Category) (map[string]int, error) {
	if rk, ok := r.ranks[c]; ok {
		return rk, nil
	}
	rk := make(map[string]int)
	if r.engine.priorities != nil {
		list, err := r.engine.priorities.PriorityList(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("priority list %s: %w", c, err)
		}
		for i, pkg := range list {
			if _, dup := rk[pkg]; !dup {
				rk[pkg] = i
			}
		}
	}
	r.ranks[c] = rk
	return rk, nil
}

// load returns the participating samples of t on the request's axis. With
// history set it reaches back to the start of time, which the basal
// derivation needs.
func (r *run) load(ctx context.Context, t record.Type, history bool) ([]Sample, error) {
	key := sampleKey{t, history}
	if s, ok := r.samples[key]; ok {
		return s, nil
	}
	q := Query{Type: t, From: r.req.Start, To: r.req.End, Local: r.req.Local}
	if history {
		q.From = math.MinInt64
	}
	raw, err := r.engine.source.Samples(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t, err)
	}
	rk, err := r.rank(ctx, record.MustLookup(t).Category)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(raw))
	for _, s := range raw {
		if len(rk) > 0 {
			if _, listed := rk[s.Origin]; !listed {
				continue
			}
		}
		if len(r.req.Origins) > 0 && !containsString(r.req.Origins, s.Origin) {
			continue
		}
		if r.req.Local {
			s.Start += int64(s.StartOffset) * 1000
			s.End += int64(s.EndOffset) * 1000
		}
		out = append(out, s)
	}
	r.samples[key] = out
	return out, nil
}

func (r *run) profile(ctx context.Context) (profile, error) {
	if r.prof != nil {
		return *r.prof, nil
	}
	lists := make([][]Sample, len(profileTypes))
	for i, t := range profileTypes {
		s, err := r.load(ctx, t, true)
		if err != nil {
			return profile{}, err
		}
		lists[i] = append([]Sample(nil), s...)
	}
	p := newProfile(lists[0], lists[1], lists[2], lists[3])
	r.prof = &p
	return p, nil
}

func (r *run) compute(ctx context.Context, t Type, sp span) (Result, error) {
	def := definitions[t]
	switch def.op {
	case opSum:
		samples, err := r.load(ctx, def.recordType, false)
		if err != nil {
			return Result{}, err
		}
		rk, err := r.rank(ctx, record.MustLookup(def.recordType).Category)
		if err != nil {
			return Result{}, err
		}
		return r.finish(sweep(samples, sp.start, sp.end, rk)), nil

	case opRecordCount:
		samples, err := r.load(ctx, def.recordType, false)
		if err != nil {
			return Result{}, err
		}
		var c contribution
		for _, s := range samples {
			if s.End > sp.start && s.Start < sp.end {
				c.add(s, 1)
			}
		}
		return r.finish(c), nil

	case opAvg, opMin, opMax, opSampleCount:
		samples, err := r.load(ctx, def.recordType, false)
		if err != nil {
			return Result{}, err
		}
		return r.finish(pointStat(samples, sp, def.op)), nil

	case opBasal:
		p, err := r.profile(ctx)
		if err != nil {
			return Result{}, err
		}
		return r.finish(p.basal(sp.start, sp.end)), nil

	case opTotalCalories:
		return r.totalCalories(ctx, sp)
	}
	return Result{}, fmt.Errorf("unhandled aggregation %s", t)
}

// totalCalories credits total-calorie records where they exist and fills
// the rest of the span with active calories plus the derived basal rate.
func (r *run) totalCalories(ctx context.Context, sp span) (Result, error) {
	totals, err := r.load(ctx, record.TypeTotalCalories, false)
	if err != nil {
		return Result{}, err
	}
	active, err := r.load(ctx, record.TypeActiveCalories, false)
	if err != nil {
		return Result{}, err
	}
	rk, err := r.rank(ctx, record.CategoryActivity)
	if err != nil {
		return Result{}, err
	}
	p, err := r.profile(ctx)
	if err != nil {
		return Result{}, err
	}

	c := sweep(totals, sp.start, sp.end, rk)
	for _, gap := range uncovered(covered(totals, sp.start, sp.end), sp.start, sp.end) {
		c.merge(sweep(active, gap.start, gap.end, rk))
		c.merge(p.basal(gap.start, gap.end))
	}
	return r.finish(c), nil
}

func pointStat(samples []Sample, sp span, o op) contribution {
	var c contribution
	var n int
	for _, s := range samples {
		if s.Start < sp.start || s.Start >= sp.end {
			continue
		}
		switch {
		case o == opSampleCount:
			c.add(s, 1)
		case !c.any:
			c.add(s, s.Value)
		case o == opMin:
			c.add(s, 0)
			c.value = math.Min(c.value, s.Value)
		case o == opMax:
			c.add(s, 0)
			c.value = math.Max(c.value, s.Value)
		default:
			c.add(s, s.Value)
		}
		n++
	}
	if o == opAvg && n > 0 {
		c.value /= float64(n)
	}
	return c
}

// finish turns a contribution into a Result. The zone offset comes from
// the earliest contributing sample, or from the request when the value was
// derived from defaults alone.
func (r *run) finish(c contribution) Result {
	res := Result{Origins: []string{}}
	if !c.any {
		return res
	}
	v := c.value
	res.Value = &v
	if len(c.samples) > 0 {
		first := c.samples[0]
		for _, s := range c.samples[1:] {
			if s.Start < first.Start {
				first = s
			}
		}
		off := first.StartOffset
		res.ZoneOffset = &off
	} else {
		off := r.req.ZoneOffset
		res.ZoneOffset = &off
	}
	seen := make(map[string]bool)
	for _, s := range c.samples {
		if s.Origin != "" && !seen[s.Origin] {
			seen[s.Origin] = true
			res.Origins = append(res.Origins, s.Origin)
		}
	}
	sort.Strings(res.Origins)
	return res
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
