package booking

import (
	"sort"
	"time"
)

// MaxOverlap computes the maximum number of intervals simultaneously active at
// any instant inside window. Intervals that do not intersect the window are
// excluded before the sweep.
//
// The sweep walks two sorted event sequences (starts ascending, ends
// ascending) with independent cursors. A start before the earliest open end
// raises the active count; an end before the next start lowers it; equal
// instants advance both cursors without touching the count, which is exactly
// the half-open boundary rule: a reservation ending at 11:00 never coexists
// with one starting at 11:00.
func MaxOverlap(intervals []Interval, window Interval) int {
	clipped := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Overlaps(window) {
			clipped = append(clipped, iv)
		}
	}
	if len(clipped) == 0 {
		return 0
	}

	starts := make([]time.Time, 0, len(clipped))
	ends := make([]time.Time, 0, len(clipped))
	for _, iv := range clipped {
		starts = append(starts, iv.Start)
		ends = append(ends, iv.End)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	sort.Slice(ends, func(i, j int) bool { return ends[i].Before(ends[j]) })

	var active, maxActive int
	i, j := 0, 0
	for i < len(starts) && j < len(ends) {
		switch {
		case starts[i].Before(ends[j]):
			active++
			if active > maxActive {
				maxActive = active
			}
			i++
		case starts[i].After(ends[j]):
			active--
			j++
		default:
			i++
			j++
		}
	}

	return maxActive
}
