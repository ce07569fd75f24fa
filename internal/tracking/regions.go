package tracking

import (
	"math"
	"slices"

	"aegis/internal/interval"
)

// BlurRegion asks the renderer to obscure Box during Interval. The interval
// is in the same timeline as the query timestamps.
type BlurRegion struct {
	interval.Interval
	Box Box `json:"box"`
}

// RegionsAt returns the pixel regions to obscure at ts. Nothing is returned
// when ts lies outside every unsafe interval.
func (tr *Tracker) RegionsAt(ts float64, unsafe []interval.Interval) []Box {
	if !interval.Contains(unsafe, ts) {
		return nil
	}
	window := tr.persistence()
	var boxes []Box
	for _, track := range tr.tracks {
		if ts-track.LastSeen > window {
			continue
		}
		if track.History[0].Timestamp-ts > window {
			continue
		}
		if box := track.boxAt(ts); !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return tr.finish(boxes)
}

// finish dedupes, merges overlapping boxes into their enclosing rectangle, and
// expands the survivors.
func (tr *Tracker) finish(boxes []Box) []Box {
	if len(boxes) == 0 {
		return nil
	}
	merged := MergeOverlapping(dedupe(boxes), tr.cfg.MergeIoU)
	out := make([]Box, 0, len(merged))
	for _, b := range merged {
		out = append(out, Expand(b, tr.cfg.ExpandRatio, tr.cfg.ExpandMinPixels, tr.width, tr.height))
	}
	return dedupe(out)
}

func dedupe(boxes []Box) []Box {
	seen := make(map[Box]struct{}, len(boxes))
	out := boxes[:0:0]
	for _, b := range boxes {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// MergeOverlapping unions every group of boxes connected by IoU above
// threshold into the group's enclosing rectangle. Grouping is transitive.
func MergeOverlapping(boxes []Box, threshold float64) []Box {
	if len(boxes) <= 1 {
		return slices.Clone(boxes)
	}
	used := make([]bool, len(boxes))
	var out []Box
	for i := range boxes {
		if used[i] {
			continue
		}
		used[i] = true
		group := []Box{boxes[i]}
		for grew := true; grew; {
			grew = false
			for j := range boxes {
				if used[j] {
					continue
				}
				for _, member := range group {
					if IoU(member, boxes[j]) > threshold {
						group = append(group, boxes[j])
						used[j] = true
						grew = true
						break
					}
				}
			}
		}
		enclosing := group[0]
		for _, b := range group[1:] {
			enclosing = Union(enclosing, b)
		}
		out = append(out, enclosing)
	}
	return out
}

// Timeline resolves regions at every native frame (spaced 1/fps) inside the
// unsafe intervals and coalesces frames where a box is unchanged into one
// BlurRegion. Each region spans half a frame either side of the frames it
// covers so inclusive render-time comparisons hit exactly those frames.
func (tr *Tracker) Timeline(unsafe []interval.Interval, fps float64) []BlurRegion {
	if fps <= 0 || len(tr.tracks) == 0 {
		return nil
	}
	half := 0.5 / fps
	var out []BlurRegion
	for _, iv := range interval.Merge(unsafe, 0) {
		open := map[Box]float64{}
		lastTS := math.NaN()
		first := int(math.Ceil(iv.Start*fps - 1e-9))
		last := int(math.Floor(iv.End*fps + 1e-9))
		for frame := first; frame <= last; frame++ {
			ts := float64(frame) / fps
			current := tr.RegionsAt(ts, []interval.Interval{iv})
			present := make(map[Box]struct{}, len(current))
			for _, b := range current {
				present[b] = struct{}{}
				if _, ok := open[b]; !ok {
					open[b] = ts
				}
			}
			for b, from := range open {
				if _, ok := present[b]; ok {
					continue
				}
				out = append(out, span(b, from, lastTS, half))
				delete(open, b)
			}
			lastTS = ts
		}
		for b, from := range open {
			out = append(out, span(b, from, lastTS, half))
		}
	}
	slices.SortFunc(out, compareRegions)
	return out
}

func span(b Box, from, to, half float64) BlurRegion {
	return BlurRegion{
		Interval: interval.Interval{Start: max(0, from-half), End: to + half},
		Box:      b,
	}
}

func compareRegions(a, b BlurRegion) int {
	switch {
	case a.Start != b.Start:
		if a.Start < b.Start {
			return -1
		}
		return 1
	case a.End != b.End:
		if a.End < b.End {
			return -1
		}
		return 1
	case a.Box.X1 != b.Box.X1:
		return a.Box.X1 - b.Box.X1
	case a.Box.Y1 != b.Box.Y1:
		return a.Box.Y1 - b.Box.Y1
	case a.Box.X2 != b.Box.X2:
		return a.Box.X2 - b.Box.X2
	default:
		return a.Box.Y2 - b.Box.Y2
	}
}

// FullFrame returns one whole-frame region per unsafe interval, for callers
// whose policy is to obscure everything when no object was localized.
func FullFrame(unsafe []interval.Interval, width, height int) []BlurRegion {
	if width <= 0 || height <= 0 {
		return nil
	}
	merged := interval.Merge(unsafe, 0)
	out := make([]BlurRegion, 0, len(merged))
	for _, iv := range merged {
		out = append(out, BlurRegion{Interval: iv, Box: Box{X2: width, Y2: height}})
	}
	return out
}
