package aggregate

import (
	"sort"

	"github.com/roach88/healthstore/internal/record"
)

const dayMillis = 24 * 60 * 60 * 1000

// Default profile used when no body measurement is known.
const (
	defaultWeightKg = 70.0
	defaultHeightCm = 170.0
	profileAgeYears = 30.0
)

// DefaultBasalKcalPerDay is the basal rate of the default profile.
var DefaultBasalKcalPerDay = mifflinStJeor(defaultWeightKg, defaultHeightCm)

// mifflinStJeor is sex-neutral: the constant is the mean of the male (+5)
// and female (-161) terms.
func mifflinStJeor(weightKg, heightCm float64) float64 {
	return 10*weightKg + 6.25*heightCm - 5*profileAgeYears - 78
}

// katchMcArdle derives the basal rate from lean body mass.
func katchMcArdle(leanKg float64) float64 {
	return 370 + 21.6*leanKg
}

// profile holds body measurement histories sorted by time.
type profile struct {
	bmr, lean, weight, height []Sample
}

func newProfile(bmr, lean, weight, height []Sample) profile {
	for _, list := range [][]Sample{bmr, lean, weight, height} {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
	}
	return profile{bmr: bmr, lean: lean, weight: weight, height: height}
}

// latest returns the last sample at or before t.
func latest(list []Sample, t int64) (Sample, bool) {
	i := sort.Search(len(list), func(i int) bool { return list[i].Start > t })
	if i == 0 {
		return Sample{}, false
	}
	return list[i-1], true
}

// rateAt resolves the basal rate in kcal/day at t: an explicit basal rate,
// else lean body mass, else weight and height, else the default profile.
// It also returns the samples the rate was derived from.
func (p profile) rateAt(t int64) (float64, []Sample) {
	if s, ok := latest(p.bmr, t); ok {
		return s.Value, []Sample{s}
	}
	if s, ok := latest(p.lean, t); ok {
		return katchMcArdle(s.Value), []Sample{s}
	}
	w, wok := latest(p.weight, t)
	h, hok := latest(p.height, t)
	weight, height := defaultWeightKg, defaultHeightCm
	var used []Sample
	if wok {
		weight = w.Value
		used = append(used, w)
	}
	if hok {
		height = h.Value * 100
		used = append(used, h)
	}
	return mifflinStJeor(weight, height), used
}

// changePoints lists the measurement times inside (from, to) where the rate
// may change.
func (p profile) changePoints(from, to int64) []int64 {
	points := []int64{}
	for _, list := range [][]Sample{p.bmr, p.lean, p.weight, p.height} {
		for _, s := range list {
			if s.Start > from && s.Start < to {
				points = append(points, s.Start)
			}
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return points
}

// basal integrates the basal rate over [from, to).
func (p profile) basal(from, to int64) contribution {
	var c contribution
	c.any = true
	cursor := from
	for _, point := range append(p.changePoints(from, to), to) {
		if point <= cursor {
			continue
		}
		rate, used := p.rateAt(cursor)
		c.value += rate * float64(point-cursor) / dayMillis
		for _, s := range used {
			c.add(s, 0)
		}
		cursor = point
	}
	return c
}

// profileTypes are the record types the basal derivation reads.
var profileTypes = []record.Type{
	record.TypeBasalMetabolicRate,
	record.TypeLeanBodyMass,
	record.TypeWeight,
	record.TypeHeight,
}
