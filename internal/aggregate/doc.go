// Package aggregate computes statistics over health records in a time
// window.
//
// The engine is pure: it pulls samples from a Source and priority lists
// from a PriorityProvider and does all arithmetic in memory. Interval sums
// resolve overlapping contributions from different apps with a sweep line
// over interval endpoints, crediting each overlap region to one record of
// the highest-priority app. Basal and total calories fall back through a fixed chain
// of derivations when no direct record covers part of the window.
package aggregate
