package aggregate

import "sort"

// contribution accumulates a value and the samples it came from.
type contribution struct {
	value   float64
	samples []Sample
	any     bool
}

func (c *contribution) add(s Sample, v float64) {
	c.value += v
	c.any = true
	for _, seen := range c.samples {
		if seen == s {
			return
		}
	}
	c.samples = append(c.samples, s)
}

func (c *contribution) merge(o contribution) {
	for _, s := range o.samples {
		c.add(s, 0)
	}
	c.value += o.value
	c.any = c.any || o.any
}

// prorate is the share of s's value falling inside [from, to), linear in
// time.
func prorate(s Sample, from, to int64) float64 {
	d := s.End - s.Start
	if d <= 0 {
		return 0
	}
	lo, hi := max(s.Start, from), min(s.End, to)
	if hi <= lo {
		return 0
	}
	return s.Value * float64(hi-lo) / float64(d)
}

type event struct {
	at    int64
	idx   int
	enter bool
}

// sweep sums interval samples over [from, to). Without a ranking every
// sample counts. With one, each maximal region covered by the same set of
// samples is credited to a single sample: the one of the best-ranked
// origin, and among that origin's samples the most recently modified.
func sweep(samples []Sample, from, to int64, rank map[string]int) contribution {
	var c contribution
	if len(rank) == 0 {
		for _, s := range samples {
			if s.End > s.Start && s.End > from && s.Start < to {
				c.add(s, prorate(s, from, to))
			}
		}
		return c
	}

	events := make([]event, 0, 2*len(samples))
	for i, s := range samples {
		lo, hi := max(s.Start, from), min(s.End, to)
		if hi <= lo {
			continue
		}
		events = append(events, event{lo, i, true}, event{hi, i, false})
	}
	sort.Slice(events, func(a, b int) bool {
		if events[a].at != events[b].at {
			return events[a].at < events[b].at
		}
		// Exits first so a sample ending where another starts is not
		// treated as overlapping it.
		return !events[a].enter && events[b].enter
	})

	active := make(map[int]bool)
	for i := 0; i < len(events); {
		at := events[i].at
		for ; i < len(events) && events[i].at == at; i++ {
			if events[i].enter {
				active[events[i].idx] = true
			} else {
				delete(active, events[i].idx)
			}
		}
		if len(active) == 0 || i == len(events) {
			continue
		}
		next := events[i].at
		winner := -1
		for idx := range active {
			if winner < 0 || outranks(samples[idx], idx, samples[winner], winner, rank) {
				winner = idx
			}
		}
		c.add(samples[winner], prorate(samples[winner], at, next))
	}
	return c
}

// outranks reports whether sample a (at index ai) beats sample b for an
// overlap region. Ties on everything fall to the lower index so the result
// does not depend on map iteration order.
func outranks(a Sample, ai int, b Sample, bi int, rank map[string]int) bool {
	if ra, rb := rank[a.Origin], rank[b.Origin]; ra != rb {
		return ra < rb
	}
	if a.LastModified != b.LastModified {
		return a.LastModified > b.LastModified
	}
	return ai < bi
}

// covered returns the union of sample spans clipped to [from, to), merged
// and sorted.
func covered(samples []Sample, from, to int64) []span {
	spans := []span{}
	for _, s := range samples {
		lo, hi := max(s.Start, from), min(s.End, to)
		if hi > lo {
			spans = append(spans, span{lo, hi})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{}
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, s.end)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// uncovered returns the parts of [from, to) outside the merged spans.
func uncovered(merged []span, from, to int64) []span {
	gaps := []span{}
	cursor := from
	for _, s := range merged {
		if s.start > cursor {
			gaps = append(gaps, span{cursor, s.start})
		}
		cursor = max(cursor, s.end)
	}
	if cursor < to {
		gaps = append(gaps, span{cursor, to})
	}
	return gaps
}
