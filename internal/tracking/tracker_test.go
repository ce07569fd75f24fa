package tracking

import (
	"slices"
	"testing"

	"aegis/internal/interval"
)

func gun(x1, y1, x2, y2 int) Detection {
	return Detection{Label: "gun", Confidence: 0.9, Box: Box{x1, y1, x2, y2}}
}

func TestTrackContinuity(t *testing.T) {
	tr := Build(DefaultConfig(), 100, 100, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(0, 0, 10, 10)}},
		{Timestamp: 1, Detections: []Detection{gun(2, 2, 12, 12)}},
		{Timestamp: 4, Detections: []Detection{gun(2, 2, 12, 12)}},
	})
	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d: %+v", len(tracks), tracks)
	}
	if len(tracks[0].History) != 2 || tracks[0].LastSeen != 1 {
		t.Fatalf("first track should hold t=0 and t=1, got %+v", tracks[0])
	}
	if len(tracks[1].History) != 1 || tracks[1].History[0].Timestamp != 4 {
		t.Fatalf("detection 3s later should start a new track, got %+v", tracks[1])
	}
	if tracks[0].ID == tracks[1].ID {
		t.Fatal("tracks must have distinct ids")
	}
}

func TestObserveUsesStalenessBoundInclusive(t *testing.T) {
	tr := Build(DefaultConfig(), 100, 100, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(0, 0, 10, 10)}},
		{Timestamp: 2, Detections: []Detection{gun(0, 0, 10, 10)}},
	})
	if got := len(tr.Tracks()); got != 1 {
		t.Fatalf("detection exactly at the staleness bound should join, got %d tracks", got)
	}
}

func TestObserveSeparatesDistantObjects(t *testing.T) {
	tr := Build(DefaultConfig(), 1000, 1000, 0.5, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(0, 0, 50, 50), {Label: "knife", Box: Box{800, 800, 850, 850}}}},
		{Timestamp: 0.5, Detections: []Detection{{Label: "knife", Box: Box{805, 805, 855, 855}}, gun(5, 5, 55, 55)}},
	})
	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %+v", tracks)
	}
	for _, track := range tracks {
		if len(track.History) != 2 {
			t.Fatalf("track %d (%s) should have 2 sightings, got %+v", track.ID, track.Label, track.History)
		}
	}
}

func TestObserveOneDetectionPerTrackPerSample(t *testing.T) {
	tr := Build(DefaultConfig(), 100, 100, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(0, 0, 10, 10)}},
		{Timestamp: 1, Detections: []Detection{gun(0, 0, 10, 10), gun(1, 1, 11, 11)}},
	})
	if got := len(tr.Tracks()); got != 2 {
		t.Fatalf("second box at the same timestamp must not join the claimed track, got %d tracks", got)
	}
}

func TestObserveLabelMismatchStillMatchesOnGeometry(t *testing.T) {
	tr := Build(DefaultConfig(), 100, 100, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{{Label: "Gun", Confidence: 0.4, Box: Box{0, 0, 10, 10}}}},
		{Timestamp: 1, Detections: []Detection{{Label: "weapon", Confidence: 0.7, Box: Box{0, 0, 10, 10}}}},
	})
	tracks := tr.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("identical boxes should join despite label change, got %d", len(tracks))
	}
	if tracks[0].Confidence != 0.7 {
		t.Fatalf("expected running max confidence 0.7, got %v", tracks[0].Confidence)
	}
	if tracks[0].Label != "Gun" {
		t.Fatalf("track keeps its first label, got %q", tracks[0].Label)
	}
}

func TestRegionsAtOutsideUnsafeIsEmpty(t *testing.T) {
	tr := Build(DefaultConfig(), 100, 100, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(40, 40, 60, 60)}},
	})
	if got := tr.RegionsAt(0, []interval.Interval{{Start: 5, End: 6}}); got != nil {
		t.Fatalf("expected no regions outside unsafe intervals, got %v", got)
	}
}

func TestRegionsAtNoDetections(t *testing.T) {
	tr := Build(DefaultConfig(), 100, 100, 1, nil)
	if got := tr.RegionsAt(0.5, []interval.Interval{{Start: 0, End: 1}}); got != nil {
		t.Fatalf("expected no regions without detections, got %v", got)
	}
}

func TestRegionsAtInterpolatesAndExpands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpandMinPixels = 0
	cfg.ExpandRatio = 0
	tr := Build(cfg, 1000, 1000, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(100, 100, 200, 200)}},
		{Timestamp: 1, Detections: []Detection{gun(120, 100, 220, 200)}},
	})
	unsafe := []interval.Interval{{Start: 0, End: 10}}
	got := tr.RegionsAt(0.5, unsafe)
	want := []Box{{110, 100, 210, 200}}
	if !slices.Equal(got, want) {
		t.Fatalf("RegionsAt(0.5) = %v, want %v", got, want)
	}
	if got := tr.RegionsAt(1.0004, unsafe); !slices.Equal(got, []Box{{120, 100, 220, 200}}) {
		t.Fatalf("exact sample should return the sampled box, got %v", got)
	}
}

func TestRegionsAtPersistenceWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpandMinPixels = 0
	cfg.ExpandRatio = 0
	tr := Build(cfg, 1000, 1000, 0.5, []Observation{
		{Timestamp: 2, Detections: []Detection{gun(100, 100, 200, 200)}},
	})
	unsafe := []interval.Interval{{Start: 0, End: 10}}
	held := []Box{{100, 100, 200, 200}}
	if got := tr.RegionsAt(3.5, unsafe); !slices.Equal(got, held) {
		t.Fatalf("expected last box held within 3 sample periods, got %v", got)
	}
	if got := tr.RegionsAt(3.6, unsafe); got != nil {
		t.Fatalf("expected nothing beyond persistence window, got %v", got)
	}
	if got := tr.RegionsAt(0.4, unsafe); got != nil {
		t.Fatalf("expected nothing long before first sighting, got %v", got)
	}
	if got := tr.RegionsAt(1.0, unsafe); !slices.Equal(got, held) {
		t.Fatalf("expected first box shortly before first sighting, got %v", got)
	}
}

func TestRegionsAtMergesOverlappingTracks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpandMinPixels = 0
	cfg.ExpandRatio = 0
	tr := NewTracker(cfg, 1000, 1000, 1)
	tr.tracks = []*Track{
		{ID: 0, Label: "a", History: []Sighting{{0, Box{0, 0, 100, 100}}}, LastSeen: 0},
		{ID: 1, Label: "b", History: []Sighting{{0, Box{10, 10, 110, 110}}}, LastSeen: 0},
		{ID: 2, Label: "c", History: []Sighting{{0, Box{500, 500, 600, 600}}}, LastSeen: 0},
		{ID: 3, Label: "d", History: []Sighting{{0, Box{500, 500, 600, 600}}}, LastSeen: 0},
	}
	got := tr.RegionsAt(0, []interval.Interval{{Start: 0, End: 1}})
	want := []Box{{0, 0, 110, 110}, {500, 500, 600, 600}}
	if !slices.Equal(got, want) {
		t.Fatalf("RegionsAt = %v, want %v", got, want)
	}
}

func TestTimelineCoalescesFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpandMinPixels = 0
	cfg.ExpandRatio = 0
	tr := Build(cfg, 1000, 1000, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(100, 100, 200, 200)}},
		{Timestamp: 1, Detections: []Detection{gun(100, 100, 200, 200)}},
	})
	regions := tr.Timeline([]interval.Interval{{Start: 0, End: 1}}, 10)
	if len(regions) != 1 {
		t.Fatalf("expected a single coalesced region, got %+v", regions)
	}
	r := regions[0]
	if r.Box != (Box{100, 100, 200, 200}) {
		t.Fatalf("unexpected box %v", r.Box)
	}
	if r.Start != 0 || r.End < 1.04 || r.End > 1.06 {
		t.Fatalf("unexpected span %v", r.Interval)
	}
}

func TestTimelineSplitsMovingBox(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpandMinPixels = 0
	cfg.ExpandRatio = 0
	tr := Build(cfg, 1000, 1000, 1, []Observation{
		{Timestamp: 0, Detections: []Detection{gun(100, 100, 200, 200)}},
		{Timestamp: 1, Detections: []Detection{gun(150, 100, 250, 200)}},
	})
	regions := tr.Timeline([]interval.Interval{{Start: 0, End: 1}}, 4)
	if len(regions) != 5 {
		t.Fatalf("expected one region per frame for a moving box, got %d: %+v", len(regions), regions)
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Start < regions[i-1].Start {
			t.Fatalf("regions not sorted: %+v", regions)
		}
	}
}

func TestFullFrame(t *testing.T) {
	got := FullFrame([]interval.Interval{{Start: 2, End: 3}, {Start: 0, End: 1}}, 640, 360)
	if len(got) != 2 || got[0].Start != 0 || got[0].Box != (Box{0, 0, 640, 360}) {
		t.Fatalf("unexpected full frame regions %+v", got)
	}
}
