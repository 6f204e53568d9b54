package aggregate

import (
	"sort"
	"time"

	"github.com/roach88/healthstore/internal/errs"
)

// DefaultMaxBuckets caps the number of groups one request may produce.
const DefaultMaxBuckets = 5000

type span struct {
	start, end int64
}

func (s span) length() int64 { return s.end - s.start }

// validate rejects malformed requests before any sample is read.
func validate(req Request, maxBuckets int) ([]span, error) {
	if len(req.Types) == 0 {
		return nil, errs.ValidationField("types", "at least one aggregation type is required")
	}
	for _, t := range req.Types {
		if _, ok := definitions[t]; !ok {
			return nil, errs.ValidationField("types", "unknown aggregation type %q", t)
		}
	}
	if req.Start >= req.End {
		return nil, errs.ValidationField("start", "window start %d must be before end %d", req.Start, req.End)
	}
	if req.GroupBy == nil {
		return []span{{req.Start, req.End}}, nil
	}

	g := req.GroupBy
	switch {
	case g.Duration < 0:
		return nil, errs.ValidationField("group_by", "group duration %s is negative", g.Duration)
	case g.Duration > 0 && !g.Period.zero():
		return nil, errs.ValidationField("group_by", "group by duration and period are exclusive")
	case g.Duration > 0:
		return durationBuckets(req.Start, req.End, g.Duration.Milliseconds(), maxBuckets)
	case g.Period.zero():
		return nil, errs.ValidationField("group_by", "group period has zero length")
	case g.Period.Months < 0 || g.Period.Days < 0:
		return nil, errs.ValidationField("group_by", "group period must be positive")
	case !req.Local:
		return nil, errs.ValidationField("group_by", "group by period requires a local time window")
	default:
		return periodBuckets(req.Start, req.End, g.Period, maxBuckets)
	}
}

func durationBuckets(start, end, step int64, maxBuckets int) ([]span, error) {
	if step <= 0 {
		return nil, errs.ValidationField("group_by", "group duration is shorter than a millisecond")
	}
	n := (end - start + step - 1) / step
	if n > int64(maxBuckets) {
		return nil, tooManyBuckets(maxBuckets)
	}
	buckets := make([]span, 0, n)
	for s := start; s < end; s += step {
		buckets = append(buckets, span{s, min(s+step, end)})
	}
	return buckets, nil
}

// periodBuckets steps calendar periods over wall-clock millis. Wall-clock
// millis are handled as if they were UTC so no zone rules apply.
func periodBuckets(start, end int64, p Period, maxBuckets int) ([]span, error) {
	buckets := []span{}
	origin := time.UnixMilli(start).UTC()
	for i := 0; ; i++ {
		s := periodBoundary(origin, p, i).UnixMilli()
		if s >= end {
			break
		}
		if len(buckets) == maxBuckets {
			return nil, tooManyBuckets(maxBuckets)
		}
		e := periodBoundary(origin, p, i+1).UnixMilli()
		buckets = append(buckets, span{s, min(e, end)})
	}
	return buckets, nil
}

// periodBoundary returns origin advanced by n periods. Months are added
// first and the day of month is clamped to the target month's length, so
// Jan 31 plus one month is Feb 28 (or 29), never Mar 2 or 3. Days are added
// on top of the clamped date.
func periodBoundary(origin time.Time, p Period, n int) time.Time {
	t := addMonthsClamped(origin, p.Months*n)
	return t.AddDate(0, 0, p.Days*n)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	return first.AddDate(0, 0, min(d, daysIn(first))-1)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

func tooManyBuckets(maxBuckets int) error {
	return errs.ValidationField("group_by", "request would produce more than %d buckets", maxBuckets)
}

func sortTypes(types []Type) {
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
}
