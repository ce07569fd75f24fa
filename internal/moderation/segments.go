package moderation

import (
	"aegis/internal/detect"
	"aegis/internal/interval"
)

const (
	neighbourMargin = 0.05
	maxStretch      = 2.0
)

// SegmentOptions tunes mute segment synthesis.
type SegmentOptions struct {
	Padding float64
	MaxGap  float64
}

// ToxicSegments returns chunk-local mute segments for every listed word in
// words. Each segment stretches into the silence around the word, stopping
// 50ms short of the neighbouring words and never reaching more than two
// seconds beyond the word itself; when neighbours overlap the word the fixed
// padding is used instead. Segments closer than MaxGap are joined.
func ToxicSegments(words []detect.Word, lx *Lexicon, opts SegmentOptions) []interval.Interval {
	var (
		out     []interval.Interval
		current *interval.Interval
	)
	for i, w := range words {
		if !w.Timed() || !lx.IsBad(w.Text) {
			continue
		}

		start := max(0, w.Start-opts.Padding)
		if i > 0 && words[i-1].Timed() {
			candidate := words[i-1].End + neighbourMargin
			if candidate > w.Start {
				start = max(0, w.Start-opts.Padding)
			} else {
				start = max(candidate, w.Start-maxStretch)
			}
		}

		end := w.End + opts.Padding
		if i < len(words)-1 && words[i+1].Timed() {
			candidate := words[i+1].Start - neighbourMargin
			if candidate < w.End {
				end = w.End + opts.Padding
			} else {
				end = min(candidate, w.End+maxStretch)
			}
		}

		switch {
		case current == nil:
			current = &interval.Interval{Start: start, End: end}
		case start <= current.End+opts.MaxGap:
			current.End = max(current.End, end)
		default:
			out = append(out, *current)
			current = &interval.Interval{Start: start, End: end}
		}
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}
