// Package tracking links sparse per-sample object detections into tracks and
// resolves them into blur regions at native frame timestamps.
//
// A Tracker is built once per chunk or file from every sampled detection,
// queried for the frames inside unsafe intervals, and then discarded.
package tracking

import (
	"math"
	"slices"
	"sort"
	"strings"
)

const exactSampleTolerance = 0.001

// Detection is one detected object in a sampled frame. Box is in pixel
// coordinates of that frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Observation groups the detections made at one sample timestamp.
type Observation struct {
	Timestamp  float64
	Detections []Detection
}

// Sighting is one entry in a track's history.
type Sighting struct {
	Timestamp float64
	Box       Box
}

// Track links detections believed to be the same physical object.
type Track struct {
	ID         int
	Label      string
	History    []Sighting
	LastSeen   float64
	Confidence float64
}

func (t *Track) add(ts float64, det Detection) {
	t.History = append(t.History, Sighting{Timestamp: ts, Box: det.Box})
	t.LastSeen = ts
	t.Confidence = max(t.Confidence, det.Confidence)
}

func (t *Track) last() Box {
	return t.History[len(t.History)-1].Box
}

// boxAt resolves the track position at ts: the exact sample when one is within
// a millisecond, linear interpolation between bracketing samples, otherwise
// the nearest end of the history.
func (t *Track) boxAt(ts float64) Box {
	idx := sort.Search(len(t.History), func(i int) bool { return t.History[i].Timestamp > ts })
	if idx > 0 && math.Abs(t.History[idx-1].Timestamp-ts) < exactSampleTolerance {
		return t.History[idx-1].Box
	}
	if idx < len(t.History) && math.Abs(t.History[idx].Timestamp-ts) < exactSampleTolerance {
		return t.History[idx].Box
	}
	switch {
	case idx == 0:
		return t.History[0].Box
	case idx == len(t.History):
		return t.last()
	}
	prev, next := t.History[idx-1], t.History[idx]
	span := next.Timestamp - prev.Timestamp
	factor := 0.5
	if span > 0 {
		factor = (ts - prev.Timestamp) / span
	}
	return Lerp(prev.Box, next.Box, factor)
}

// Tracker holds the tracks for one chunk or file.
type Tracker struct {
	cfg            Config
	width, height  int
	diagonal       float64
	sampleInterval float64
	tracks         []*Track
	nextID         int
}

// NewTracker creates an empty tracker for a width x height sampled frame.
// sampleInterval is the spacing between analysed frames (1/sample_fps).
func NewTracker(cfg Config, width, height int, sampleInterval float64) *Tracker {
	return &Tracker{
		cfg:            cfg,
		width:          width,
		height:         height,
		diagonal:       math.Hypot(float64(width), float64(height)),
		sampleInterval: sampleInterval,
	}
}

// Build constructs a tracker from observations in any order.
func Build(cfg Config, width, height int, sampleInterval float64, observations []Observation) *Tracker {
	ordered := slices.Clone(observations)
	slices.SortStableFunc(ordered, func(a, b Observation) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	tr := NewTracker(cfg, width, height, sampleInterval)
	for _, obs := range ordered {
		tr.Observe(obs.Timestamp, obs.Detections)
	}
	return tr
}

// Observe folds the detections at ts into the tracks. Calls must arrive in
// non-decreasing timestamp order. Each track accepts at most one detection
// per timestamp.
func (tr *Tracker) Observe(ts float64, detections []Detection) {
	stale := tr.cfg.StaleAfter.Seconds()
	claimed := make(map[*Track]bool, len(detections))
	for _, det := range detections {
		if det.Box.Empty() {
			continue
		}
		var (
			best      *Track
			bestScore float64
		)
		for _, track := range tr.tracks {
			if claimed[track] || ts-track.LastSeen > stale {
				continue
			}
			score, ok := tr.score(det, track)
			if ok && score > bestScore {
				best, bestScore = track, score
			}
		}
		if best != nil && bestScore > tr.cfg.MatchThreshold {
			best.add(ts, det)
			claimed[best] = true
			continue
		}
		track := &Track{ID: tr.nextID, Label: det.Label}
		tr.nextID++
		track.add(ts, det)
		tr.tracks = append(tr.tracks, track)
		claimed[track] = true
	}
}

func (tr *Tracker) score(det Detection, track *Track) (float64, bool) {
	last := track.last()
	iou := IoU(det.Box, last)
	cd := CenterDistance(det.Box, last, tr.diagonal)
	if tr.diagonal <= 0 {
		cd = 1
	}
	if iou <= tr.cfg.MinIoU && cd >= tr.cfg.MaxCenterDistance {
		return 0, false
	}
	score := iou + max(0, 1-2*cd)*tr.cfg.CenterWeight
	if strings.EqualFold(strings.TrimSpace(track.Label), strings.TrimSpace(det.Label)) {
		score += tr.cfg.LabelBonus
	}
	return score, true
}

// Tracks returns a snapshot of the current tracks ordered by id.
func (tr *Tracker) Tracks() []Track {
	out := make([]Track, len(tr.tracks))
	for i, t := range tr.tracks {
		out[i] = *t
		out[i].History = slices.Clone(t.History)
	}
	return out
}

// FrameSize returns the sampled frame dimensions the tracker was built for.
func (tr *Tracker) FrameSize() (int, int) {
	return tr.width, tr.height
}

func (tr *Tracker) persistence() float64 {
	return tr.cfg.PersistencePeriods * tr.sampleInterval
}
