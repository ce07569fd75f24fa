package moderation

import (
	"math"
	"reflect"
	"testing"

	"aegis/internal/detect"
	"aegis/internal/interval"
	"aegis/internal/tracking"
)

func TestLexiconFind(t *testing.T) {
	lx := NewLexicon([]string{"Frak"}, []string{"damn"})
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "clean", text: "hello there friend", want: nil},
		{name: "case folded", text: "What the SHIT is this", want: []string{"shit"}},
		{name: "punctuation", text: "oh, shit! crap.", want: []string{"shit", "crap"}},
		{name: "substring ignored", text: "the scrappy assassin", want: nil},
		{name: "phrase", text: "you son of a bitch", want: []string{"son of a bitch"}},
		{name: "extra word", text: "frak this", want: []string{"frak"}},
		{name: "allowed word", text: "damn it", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := lx.Find(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Find(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestSeverityBuckets(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 12: 3}
	for count, want := range cases {
		if got := Severity(count); got != want {
			t.Fatalf("Severity(%d) = %d, want %d", count, got, want)
		}
	}
}

func TestAnalyzeBlocksAtThreshold(t *testing.T) {
	rules := TextRules{Lexicon: NewLexicon(nil, nil), BlockSeverity: 2}
	mild := rules.Analyze("well shit")
	if mild.Block || mild.Severity != 1 {
		t.Fatalf("mild = %+v, want severity 1 unblocked", mild)
	}
	strong := rules.Analyze("shit crap fuck")
	if !strong.Block || strong.Severity != 2 || strong.Count != 3 {
		t.Fatalf("strong = %+v, want severity 2 blocked", strong)
	}
}

func TestToxicSegmentsStretchIntoSilence(t *testing.T) {
	lx := NewLexicon(nil, nil)
	words := []detect.Word{
		{Text: "well", Start: 0.0, End: 0.4},
		{Text: "shit", Start: 1.0, End: 1.3},
		{Text: "okay", Start: 2.0, End: 2.5},
	}
	got := ToxicSegments(words, lx, SegmentOptions{Padding: 0.15, MaxGap: 0.25})
	want := []interval.Interval{{Start: 0.45, End: 1.95}}
	assertIntervals(t, got, want)
}

func TestToxicSegmentsFallbackPaddingAndEdges(t *testing.T) {
	lx := NewLexicon(nil, nil)
	words := []detect.Word{
		{Text: "shit", Start: 0.1, End: 0.5},
		{Text: "and", Start: 0.52, End: 0.7},
		{Text: "stuff", Start: 5.0, End: 5.2},
		{Text: "crap", Start: 9.0, End: 9.4},
	}
	got := ToxicSegments(words, lx, SegmentOptions{Padding: 0.15, MaxGap: 0.25})
	// First word: start padded from zero floor, next word too close so end is padded.
	// Last word: start capped at two seconds before, end padded.
	want := []interval.Interval{{Start: 0, End: 0.65}, {Start: 7.0, End: 9.55}}
	assertIntervals(t, got, want)
}

func TestToxicSegmentsMergesCloseWords(t *testing.T) {
	lx := NewLexicon(nil, nil)
	words := []detect.Word{
		{Text: "shit", Start: 1.0, End: 1.2},
		{Text: "fuck", Start: 1.25, End: 1.5},
	}
	got := ToxicSegments(words, lx, SegmentOptions{Padding: 0.1, MaxGap: 0.25})
	if len(got) != 1 {
		t.Fatalf("got %v, want single merged segment", got)
	}
	if math.Abs(got[0].Start-0.9) > 1e-9 || math.Abs(got[0].End-1.6) > 1e-9 {
		t.Fatalf("got %v, want [0.9,1.6]", got[0])
	}
}

func TestToxicSegmentsSkipsUntimedWords(t *testing.T) {
	lx := NewLexicon(nil, nil)
	words := []detect.Word{{Text: "shit", Start: -1, End: -1}}
	if got := ToxicSegments(words, lx, SegmentOptions{Padding: 0.1}); len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestObjectRulesSelect(t *testing.T) {
	box := tracking.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	dets := []tracking.Detection{
		{Label: "Gun", Confidence: 0.9, Box: box},
		{Label: "assault rifle", Confidence: 0.5, Box: box},
		{Label: "bathtub", Confidence: 0.9, Box: box},
		{Label: "knife", Confidence: 0.05, Box: box},
		{Label: "person", Confidence: 0.9, Box: box},
		{Label: "breast", Confidence: 0.3, Box: box},
	}
	rules := ObjectRules{MinConfidence: 0.08}

	labels := func(ds []tracking.Detection) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.Label)
		}
		return out
	}

	if got, want := labels(rules.Select(dets, false)), []string{"Gun", "assault rifle", "breast"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unblocked select = %v, want %v", got, want)
	}
	if got, want := labels(rules.Select(dets, true)), []string{"Gun", "assault rifle", "person", "breast"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("blocked select = %v, want %v", got, want)
	}
}

func TestTranscriptBufferWindow(t *testing.T) {
	buf := NewTranscriptBuffer(30)
	buf.Add(0, "first")
	buf.Add(10, "second")
	buf.Add(20, "  ")
	if got := buf.Text(30); got != "first second" {
		t.Fatalf("Text(30) = %q", got)
	}
	buf.Add(35, "third")
	if got := buf.Text(35); got != "second third" {
		t.Fatalf("Text(35) = %q", got)
	}
}

func assertIntervals(t *testing.T, got, want []interval.Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if math.Abs(got[i].Start-want[i].Start) > 1e-9 || math.Abs(got[i].End-want[i].End) > 1e-9 {
			t.Fatalf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}
}
