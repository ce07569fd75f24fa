// Package interval implements the time-range algebra shared by every
// censorship path: merging verdict ranges, padding them, and clipping
// absolute-timeline ranges into chunk-local render windows.
//
// All functions are pure. Lists returned by Merge are sorted by start and
// mutually non-overlapping; the other helpers preserve input order and leave
// re-merging to the caller.
package interval

import (
	"fmt"
	"slices"
)

// Interval is a [Start, End) range in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End-Start.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Valid reports whether the interval has positive length.
func (iv Interval) Valid() bool {
	return iv.End > iv.Start
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.3f,%.3f)", iv.Start, iv.End)
}

// Merge sorts intervals by start and folds every interval whose start is
// within gap seconds of the running end into it. The input is not modified.
// Merge is idempotent for a fixed gap.
func Merge(intervals []Interval, gap float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b Interval) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		case a.End < b.End:
			return -1
		case a.End > b.End:
			return 1
		default:
			return 0
		}
	})

	merged := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= current.End+gap {
			current.End = max(current.End, next.End)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Extend pads each interval by before seconds (floored at zero) and after
// seconds. Overlaps introduced by padding are not merged.
func Extend(intervals []Interval, before, after float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	out := make([]Interval, len(intervals))
	for i, iv := range intervals {
		out[i] = Interval{Start: max(0, iv.Start-before), End: iv.End + after}
	}
	return out
}

// ClipToWindow converts absolute intervals into coordinates local to the
// window [windowStart, windowStart+windowDuration). Intervals entirely
// outside the window are dropped; partial overlaps are clamped to
// [0, windowDuration].
func ClipToWindow(intervals []Interval, windowStart, windowDuration float64) []Interval {
	windowEnd := windowStart + windowDuration
	var out []Interval
	for _, iv := range intervals {
		if iv.End <= windowStart || iv.Start >= windowEnd {
			continue
		}
		local := Interval{
			Start: max(0, iv.Start-windowStart),
			End:   min(windowDuration, iv.End-windowStart),
		}
		if local.Valid() {
			out = append(out, local)
		}
	}
	return out
}

// Shift adds offset to both bounds of every interval.
func Shift(intervals []Interval, offset float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	out := make([]Interval, len(intervals))
	for i, iv := range intervals {
		out[i] = Interval{Start: iv.Start + offset, End: iv.End + offset}
	}
	return out
}

// Contains reports whether ts lies within any interval, bounds inclusive.
func Contains(intervals []Interval, ts float64) bool {
	for _, iv := range intervals {
		if iv.Start <= ts && ts <= iv.End {
			return true
		}
	}
	return false
}

// Total returns the summed length of the merged intervals.
func Total(intervals []Interval) float64 {
	var total float64
	for _, iv := range Merge(intervals, 0) {
		total += iv.Duration()
	}
	return total
}
