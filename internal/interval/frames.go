package interval

// Sample is a block/pass decision at one sampled timestamp.
type Sample struct {
	Timestamp float64
	Blocked   bool
}

// FromSamples turns a time-ordered run of sample decisions into unsafe
// intervals. A run of blocked samples spans from its first blocked timestamp
// to the first following pass timestamp plus step; a run still open at the
// end closes at the last timestamp plus step.
func FromSamples(samples []Sample, step float64) []Interval {
	var (
		out     []Interval
		inRun   bool
		runFrom float64
	)
	for _, s := range samples {
		switch {
		case s.Blocked && !inRun:
			inRun = true
			runFrom = s.Timestamp
		case !s.Blocked && inRun:
			inRun = false
			out = append(out, Interval{Start: runFrom, End: s.Timestamp + step})
		}
	}
	if inRun && len(samples) > 0 {
		out = append(out, Interval{Start: runFrom, End: samples[len(samples)-1].Timestamp + step})
	}
	return out
}
